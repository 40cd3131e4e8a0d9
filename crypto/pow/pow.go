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

// Package pow implements the hashcash-style proof of work that gates
// every envelope on the wire. The target formula is part of the wire
// contract; both sides must agree bit-exactly.
package pow

import (
	"crypto/sha512"
	"encoding/binary"
)

// Target returns the acceptance threshold for a message of n bytes.
// Longer messages get a proportionally harder target.
func Target(n int) uint64 {
	return (uint64(1) << 56) / uint64(1+n)
}

// Compute searches nonces starting at 1 and returns the first one whose
// double-SHA-512 trial value falls at or below the target.
func Compute(message []byte) uint64 {
	target := Target(len(message))
	var nonce uint64
	for {
		nonce++
		if trial(nonce, message) <= target {
			return nonce
		}
	}
}

// Verify recomputes the trial value for the given nonce under the same
// target rule.
func Verify(message []byte, nonce uint64) bool {
	return trial(nonce, message) <= Target(len(message))
}

func trial(nonce uint64, message []byte) uint64 {
	buf := make([]byte, 8, 8+len(message))
	binary.BigEndian.PutUint64(buf, nonce)
	buf = append(buf, message...)

	h1 := sha512.Sum512(buf)
	h2 := sha512.Sum512(h1[:])
	return binary.BigEndian.Uint64(h2[:8])
}
