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

// Package metrics exposes the node's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every securetalks collector plus the standard Go and
// process collectors.
var Registry = prometheus.NewRegistry()

var (
	// MessagesReceived counts envelopes decrypted and stored as chat
	// messages.
	MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "securetalks_messages_received_total",
		Help: "Envelopes decrypted for this node and stored as messages.",
	})

	// MessagesSent counts frames successfully written to a peer.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "securetalks_messages_sent_total",
		Help: "Frames successfully delivered to a peer.",
	})

	// CiphergramsCached counts envelopes stored for forwarding because
	// they were not addressed to this node.
	CiphergramsCached = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "securetalks_ciphergrams_cached_total",
		Help: "Undeliverable envelopes cached for forwarding.",
	})

	// FramesDropped counts inbound frames discarded at the protocol
	// boundary, partitioned by drop reason.
	FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "securetalks_frames_dropped_total",
		Help: "Inbound frames discarded at the protocol boundary.",
	}, []string{"reason"})

	// PowDuration observes how long sealing one outbound envelope takes:
	// encryption, signature and the proof-of-work search together.
	PowDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "securetalks_pow_seconds",
		Help:    "Time spent sealing outbound envelopes, proof of work included.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

func init() {
	Registry.MustRegister(
		MessagesReceived,
		MessagesSent,
		CiphergramsCached,
		FramesDropped,
		PowDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Drop reasons for FramesDropped.
const (
	DropUnparsable   = "unparsable"
	DropUnknownType  = "unknown_type"
	DropBadEnvelope  = "bad_envelope"
	DropStale        = "stale"
	DropUnsolicited  = "unsolicited_offline"
	DropBadStructure = "bad_structure"
)
