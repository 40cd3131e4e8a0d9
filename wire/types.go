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

// Package wire defines the JSON messages peers exchange. Frames carry
// exactly one of these, discriminated by the mandatory "type" field.
package wire

import "github.com/securetalks-project/securetalks/crypto/envelope"

// Message type discriminators.
const (
	TypeCiphergram      = "ciphergram"
	TypeRequestOffline  = "request_offline_data"
	TypeResponseOffline = "response_offline_data"
)

// Header is the minimal shape read first to route a frame.
type Header struct {
	Type string `json:"type"`
}

// Ciphergram carries one encrypted envelope plus the sender's listening
// port (the TCP source port is ephemeral and useless for dialing back).
type Ciphergram struct {
	Type       string `json:"type"`
	ServerPort int    `json:"server_port,omitempty"`
	envelope.Envelope
}

// RequestOffline asks a peer to replay its cached ciphergrams.
type RequestOffline struct {
	Type       string `json:"type"`
	ServerPort int    `json:"server_port"`
}

// ResponseOffline returns the cached ciphergrams. Content is the full
// ciphergram JSON as originally received, opaque to the carrier.
type ResponseOffline struct {
	Type        string             `json:"type"`
	Ciphergrams []StoredCiphergram `json:"ciphergrams"`
}

// StoredCiphergram is one cached entry inside a ResponseOffline.
type StoredCiphergram struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}
