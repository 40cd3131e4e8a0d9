// SecureTalks - Decentralized End-to-End Encrypted Messenger
// Copyright (C) 2025 securetalks-project
//
// This file is part of SecureTalks.
//
// SecureTalks is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SecureTalks is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SecureTalks. If not, see <https://www.gnu.org/licenses/>.

// Package envelope builds and opens the encrypted message envelope:
// Fernet for the body, RSA-OAEP for the per-message key, RSA-PSS for
// authorship, and a proof of work over the whole thing.
package envelope

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/securetalks-project/securetalks/crypto/keys"
	"github.com/securetalks-project/securetalks/crypto/pow"
)

// Failure taxonomy. The dispatcher routes on these: ErrDecryption is the
// "not for me" signal, ErrVerification means a forged author.
var (
	ErrInvalidRecipient = errors.New("envelope: recipient key is not a valid node id")
	ErrProofOfWork      = errors.New("envelope: proof of work does not match")
	ErrDecoding         = errors.New("envelope: malformed envelope structure")
	ErrDecryption       = errors.New("envelope: not addressed to this node")
	ErrVerification     = errors.New("envelope: signature does not verify")
)

// Envelope is the wire representation of one encrypted message. It is
// immutable by contract: derive a new value instead of mutating fields.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Cipherkey  string `json:"cipherkey"`
	Signature  string `json:"signature"`
	Proof      uint64 `json:"proof"`
	Timestamp  int64  `json:"timestamp"`
}

// Footprint is the byte string the proof of work commits to: the ASCII
// concatenation of the hex fields and the decimal timestamp.
func (e *Envelope) Footprint() []byte {
	return []byte(e.Ciphertext + e.Cipherkey + e.Signature + strconv.FormatInt(e.Timestamp, 10))
}

// Codec seals and opens envelopes with the node's own key pair.
type Codec struct {
	keys *keys.Provider
}

// NewCodec returns a codec bound to the given key provider.
func NewCodec(provider *keys.Provider) *Codec {
	return &Codec{keys: provider}
}

// Seal encrypts text for the recipient named by its hex node id and
// signs it as this node. The recipient key failing to parse is the only
// caller-visible error class; everything else is an internal fault.
func (c *Codec) Seal(recipientHex, text string) (*Envelope, error) {
	recipient, err := keys.ParsePublicKeyHex(recipientHex)
	if err != nil {
		return nil, ErrInvalidRecipient
	}

	senderHex, err := c.keys.PublicKeyHex()
	if err != nil {
		return nil, err
	}
	prv, err := c.keys.PrivateKey()
	if err != nil {
		return nil, err
	}

	var key fernet.Key
	if err := key.Generate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal([2]string{senderHex, hex.EncodeToString([]byte(text))})
	if err != nil {
		return nil, err
	}
	ciphertext, err := fernet.EncryptAndSign(payload, &key)
	if err != nil {
		return nil, err
	}

	// The OAEP plaintext is the base64-encoded key, not the raw bytes.
	// That is the wire contract; changing it strands every other node.
	cipherkey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, []byte(key.Encode()), nil)
	if err != nil {
		return nil, err
	}

	digest := signedDigest(ciphertext, cipherkey)
	signature, err := rsa.SignPSS(rand.Reader, prv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		Ciphertext: hex.EncodeToString(ciphertext),
		Cipherkey:  hex.EncodeToString(cipherkey),
		Signature:  hex.EncodeToString(signature),
		Timestamp:  time.Now().Unix(),
	}
	env.Proof = pow.Compute(env.Footprint())
	return env, nil
}

// Open validates and decrypts an envelope, returning the sender's hex
// node id and the plaintext. The error distinguishes the stages of
// failure. Timing freshness is deliberately not checked here; the
// dispatcher owns that decision.
func (c *Codec) Open(env *Envelope) (senderHex string, text string, err error) {
	if !pow.Verify(env.Footprint(), env.Proof) {
		return "", "", ErrProofOfWork
	}

	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return "", "", ErrDecoding
	}
	cipherkey, err := hex.DecodeString(env.Cipherkey)
	if err != nil {
		return "", "", ErrDecoding
	}
	signature, err := hex.DecodeString(env.Signature)
	if err != nil {
		return "", "", ErrDecoding
	}

	prv, err := c.keys.PrivateKey()
	if err != nil {
		return "", "", err
	}
	encodedKey, err := rsa.DecryptOAEP(sha256.New(), nil, prv, cipherkey, nil)
	if err != nil {
		return "", "", ErrDecryption
	}
	key, err := fernet.DecodeKey(string(encodedKey))
	if err != nil {
		return "", "", ErrDecryption
	}
	// TTL 0 disables fernet's own freshness check.
	payload := fernet.VerifyAndDecrypt(ciphertext, 0, []*fernet.Key{key})
	if payload == nil {
		return "", "", ErrDecryption
	}

	var inner [2]string
	if err := json.Unmarshal(payload, &inner); err != nil {
		return "", "", ErrDecoding
	}
	senderHex = inner[0]
	textBytes, err := hex.DecodeString(inner[1])
	if err != nil {
		return "", "", ErrDecoding
	}
	sender, err := keys.ParsePublicKeyHex(senderHex)
	if err != nil {
		return "", "", ErrDecoding
	}

	digest := signedDigest(ciphertext, cipherkey)
	if err := rsa.VerifyPSS(sender, crypto.SHA256, digest[:], signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	}); err != nil {
		return "", "", ErrVerification
	}

	return senderHex, string(textBytes), nil
}

// signedDigest hashes ciphertext || cipherkey, the exact byte string the
// author signs.
func signedDigest(ciphertext, cipherkey []byte) [sha256.Size]byte {
	signed := make([]byte, 0, len(ciphertext)+len(cipherkey))
	signed = append(signed, ciphertext...)
	signed = append(signed, cipherkey...)
	return sha256.Sum256(signed)
}
