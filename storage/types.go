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

package storage

import "errors"

// Expected-duplicate and missing-entity errors. Callers on the protocol
// path ignore the duplicate class; user-initiated actions turn the
// missing class into a no-op.
var (
	ErrNodeExists       = errors.New("storage: node already exists")
	ErrNodeNotFound     = errors.New("storage: node not found")
	ErrMessageExists    = errors.New("storage: message already exists")
	ErrCiphergramExists = errors.New("storage: ciphergram already exists")
	ErrPeerExists       = errors.New("storage: peer already exists")
	ErrPeerNotFound     = errors.New("storage: peer not found")
)

// Node is a remote identity known to this peer, keyed by the hex PEM of
// its public key.
type Node struct {
	NodeID       string `json:"node_id"`
	LastActivity int64  `json:"last_activity"`
	UnreadCount  int    `json:"unread_count"`
	Alias        string `json:"alias"`
}

// Message is one plaintext chat entry of a dialog.
type Message struct {
	NodeID          string `json:"node_id"`
	Text            string `json:"text"`
	ToMe            bool   `json:"to_me"`
	SenderTimestamp int64  `json:"sender_timestamp"`
	Timestamp       int64  `json:"timestamp"`
}

// Ciphergram is an undeliverable envelope cached for forwarding and
// offline retrieval. Content is the received JSON, kept opaque.
type Ciphergram struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Peer is a reachable remote node address.
type Peer struct {
	Address      string `json:"address"`
	Port         int    `json:"port"`
	LastActivity int64  `json:"last_activity"`
}
