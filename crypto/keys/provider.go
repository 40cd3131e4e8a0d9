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

// Package keys owns the node's long-lived RSA key pair. The public key,
// rendered as lowercase hex of its PEM encoding, is the node identity on
// the wire. The private key never leaves this package's Provider.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	pubKeyFile = "pub.pem"
	prvKeyFile = "prv.pem"

	keyBits        = 2048
	pubPEMType     = "PUBLIC KEY"
	prvPEMType     = "RSA PRIVATE KEY"
	keyFilePerm    = 0o600
	pubKeyFilePerm = 0o644
)

// ErrMalformedKey reports key material that could not be parsed.
var ErrMalformedKey = errors.New("keys: malformed key material")

// Provider lazily loads the key pair from pub.pem/prv.pem in the data
// directory, generating and persisting a fresh pair when either file is
// missing.
type Provider struct {
	dir string

	mu     sync.Mutex
	pub    *rsa.PublicKey
	prv    *rsa.PrivateKey
	pubHex string
}

// NewProvider creates a provider rooted at the given data directory.
// No key material is touched until first use.
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

// PublicKey returns the node's public key.
func (p *Provider) PublicKey() (*rsa.PublicKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.obtain(); err != nil {
		return nil, err
	}
	return p.pub, nil
}

// PrivateKey returns the node's private key. Callers hold a borrowed
// reference and must not serialize or expose it.
func (p *Provider) PrivateKey() (*rsa.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.obtain(); err != nil {
		return nil, err
	}
	return p.prv, nil
}

// PublicKeyHex returns the canonical node id: the SubjectPublicKeyInfo
// PEM bytes of the public key as lowercase hex.
func (p *Provider) PublicKeyHex() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.obtain(); err != nil {
		return "", err
	}
	if p.pubHex == "" {
		pemBytes, err := MarshalPublicKeyPEM(p.pub)
		if err != nil {
			return "", err
		}
		p.pubHex = hex.EncodeToString(pemBytes)
	}
	return p.pubHex, nil
}

// obtain loads or generates the pair. Callers hold p.mu.
func (p *Provider) obtain() error {
	if p.pub != nil && p.prv != nil {
		return nil
	}
	if err := p.load(); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return p.generate()
}

func (p *Provider) load() error {
	prvPEM, err := os.ReadFile(filepath.Join(p.dir, prvKeyFile))
	if err != nil {
		return err
	}
	pubPEM, err := os.ReadFile(filepath.Join(p.dir, pubKeyFile))
	if err != nil {
		return err
	}

	prv, err := parsePrivateKeyPEM(prvPEM)
	if err != nil {
		return err
	}
	pub, err := ParsePublicKeyPEM(pubPEM)
	if err != nil {
		return err
	}

	p.prv, p.pub = prv, pub
	return nil
}

func (p *Provider) generate() error {
	prv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("keys: generate pair: %w", err)
	}
	p.prv = prv
	p.pub = &prv.PublicKey
	return p.store()
}

func (p *Provider) store() error {
	pubPEM, err := MarshalPublicKeyPEM(p.pub)
	if err != nil {
		return err
	}
	prvPEM := pem.EncodeToMemory(&pem.Block{
		Type:  prvPEMType,
		Bytes: x509.MarshalPKCS1PrivateKey(p.prv),
	})

	if err := writeFileAtomic(filepath.Join(p.dir, pubKeyFile), pubPEM, pubKeyFilePerm); err != nil {
		return fmt.Errorf("keys: store public key: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(p.dir, prvKeyFile), prvPEM, keyFilePerm); err != nil {
		return fmt.Errorf("keys: store private key: %w", err)
	}
	return nil
}

// writeFileAtomic writes via a temp file plus rename so a crash never
// leaves a half-written key on disk.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// MarshalPublicKeyPEM renders a public key as SubjectPublicKeyInfo PEM.
func MarshalPublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("keys: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pubPEMType, Bytes: der}), nil
}

// ParsePublicKeyPEM parses a SubjectPublicKeyInfo PEM public key.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrMalformedKey
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrMalformedKey
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrMalformedKey
	}
	return pub, nil
}

// ParsePublicKeyHex parses a node id (hex of public-key PEM) back into
// the key it names.
func ParsePublicKeyHex(id string) (*rsa.PublicKey, error) {
	pemBytes, err := hex.DecodeString(id)
	if err != nil {
		return nil, ErrMalformedKey
	}
	return ParsePublicKeyPEM(pemBytes)
}

func parsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrMalformedKey
	}
	if prv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return prv, nil
	}
	// Tolerate PKCS#8 containers written by other tooling.
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrMalformedKey
	}
	prv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrMalformedKey
	}
	return prv, nil
}
