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

// Package node ties the workers into the gossip-and-store protocol: the
// dispatcher drains the inbound queue and drives the store, the sender
// and the UI; the supervisor owns every lifecycle.
package node

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/securetalks-project/securetalks/crypto/envelope"
	"github.com/securetalks-project/securetalks/internal/logger"
	"github.com/securetalks-project/securetalks/internal/metrics"
	"github.com/securetalks-project/securetalks/storage"
	"github.com/securetalks-project/securetalks/transport"
	"github.com/securetalks-project/securetalks/wire"
)

// Gossip is the slice of the sender the dispatcher drives.
type Gossip interface {
	SendTo(frame []byte, peer transport.PeerAddr)
	BroadcastFrom(frame []byte, origin transport.PeerAddr) error
	TakeOfflineRequest(peer transport.PeerAddr) bool
}

// Notifier pushes newly arrived messages to the presentation layer.
type Notifier interface {
	PushMessage(node storage.Node, msg storage.Message)
}

// Dispatcher is the single-threaded consumer of the inbound channel.
// Any malformed input is dropped at this boundary; nothing a peer sends
// may take the node down.
type Dispatcher struct {
	inbound <-chan transport.Inbound
	store   *storage.Store
	codec   *envelope.Codec
	gossip  Gossip
	ui      Notifier
	ttl     int64

	now func() int64
	log logger.Logger
}

// NewDispatcher wires a dispatcher. ui may be nil when no presentation
// layer is attached.
func NewDispatcher(
	inbound <-chan transport.Inbound,
	store *storage.Store,
	codec *envelope.Codec,
	gossip Gossip,
	ui Notifier,
	ttl int64,
) *Dispatcher {
	return &Dispatcher{
		inbound: inbound,
		store:   store,
		codec:   codec,
		gossip:  gossip,
		ui:      ui,
		ttl:     ttl,
		now:     func() int64 { return time.Now().Unix() },
		log:     logger.GetDefaultLogger().WithFields(logger.String("component", "dispatcher")),
	}
}

// Run consumes the inbound channel until it is closed or the sentinel
// (nil payload) arrives.
func (d *Dispatcher) Run() {
	for in := range d.inbound {
		if in.Payload == nil {
			return
		}
		d.Handle(in.Peer, in.Payload)
	}
}

// Handle processes one raw inbound frame.
func (d *Dispatcher) Handle(peer transport.PeerAddr, raw []byte) {
	var header wire.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		metrics.FramesDropped.WithLabelValues(metrics.DropUnparsable).Inc()
		return
	}

	// Any traffic from a known peer counts as activity.
	if exists, err := d.store.Peers.Exists(peer.Address, peer.Port); err == nil && exists {
		_ = d.store.Peers.UpdateActivity(peer.Address, peer.Port)
	}

	switch header.Type {
	case wire.TypeCiphergram:
		d.handleCiphergram(peer, raw, false)
	case wire.TypeRequestOffline:
		d.handleRequestOffline(peer, raw)
	case wire.TypeResponseOffline:
		d.handleResponseOffline(peer, raw)
	default:
		metrics.FramesDropped.WithLabelValues(metrics.DropUnknownType).Inc()
	}
}

// handleCiphergram runs the accept/decrypt/store/forward branch. For
// offline-replayed entries the decrypt/store logic is identical but the
// frame is never rebroadcast.
func (d *Dispatcher) handleCiphergram(peer transport.PeerAddr, raw []byte, offline bool) {
	var msg wire.Ciphergram
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Ciphertext == "" {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadStructure).Inc()
		return
	}
	env := msg.Envelope

	senderID, text, err := d.codec.Open(&env)
	switch {
	case errors.Is(err, envelope.ErrDecryption):
		// Not for me: cache and keep the flood going.
		d.storeCiphergram(raw, env.Timestamp)
		if !offline {
			d.rebroadcast(raw, peer)
		}
	case err != nil:
		// Broken proof, malformed structure or a forged signature:
		// drop without storing or forwarding.
		metrics.FramesDropped.WithLabelValues(metrics.DropBadEnvelope).Inc()
	default:
		if absDiff(env.Timestamp, d.now()) > d.ttl {
			metrics.FramesDropped.WithLabelValues(metrics.DropStale).Inc()
			return
		}
		if !d.storeMessage(senderID, text, env.Timestamp) {
			return
		}
		if !offline {
			d.rebroadcast(raw, peer)
		}
	}
}

// storeMessage ensures the sender's node row, appends the message and
// notifies the UI. Reports whether the pipeline may continue to the
// rebroadcast step.
func (d *Dispatcher) storeMessage(senderID, text string, senderTS int64) bool {
	exists, err := d.store.Nodes.Exists(senderID)
	if err != nil {
		d.log.Error("node lookup failed", logger.Error(err))
		return false
	}
	if !exists {
		if err := d.store.Nodes.Add(storage.Node{NodeID: senderID}); err != nil && !errors.Is(err, storage.ErrNodeExists) {
			d.log.Error("create node failed", logger.Error(err))
			return false
		}
	}
	_ = d.store.Nodes.UpdateActivity(senderID)

	msg := storage.Message{
		NodeID:          senderID,
		Text:            text,
		ToMe:            true,
		SenderTimestamp: senderTS,
		Timestamp:       d.now(),
	}
	if exists, err := d.store.Messages.Exists(msg); err != nil || exists {
		// A duplicate still travels on; it just isn't stored twice.
		return err == nil
	}
	if err := d.store.Messages.Add(msg); err != nil {
		d.log.Error("store message failed", logger.Error(err))
		return false
	}
	_ = d.store.Nodes.IncrementUnread(senderID)
	metrics.MessagesReceived.Inc()

	if d.ui != nil {
		if node, err := d.store.Nodes.GetByID(senderID); err == nil {
			d.ui.PushMessage(node, msg)
		}
	}
	return true
}

func (d *Dispatcher) storeCiphergram(raw []byte, ts int64) {
	err := d.store.Ciphergrams.Add(storage.Ciphergram{Content: string(raw), Timestamp: ts})
	switch {
	case errors.Is(err, storage.ErrCiphergramExists):
	case err != nil:
		d.log.Error("cache ciphergram failed", logger.Error(err))
	default:
		metrics.CiphergramsCached.Inc()
	}
}

func (d *Dispatcher) rebroadcast(raw []byte, origin transport.PeerAddr) {
	if err := d.gossip.BroadcastFrom(raw, origin); err != nil {
		d.log.Error("rebroadcast failed", logger.Error(err))
	}
}

// handleRequestOffline rewrites the observed peer's port to its real
// listening port, records it, and answers with the ciphergram cache.
func (d *Dispatcher) handleRequestOffline(peer transport.PeerAddr, raw []byte) {
	var req wire.RequestOffline
	if err := json.Unmarshal(raw, &req); err != nil || req.ServerPort < 1 || req.ServerPort > 65535 {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadStructure).Inc()
		return
	}
	peer.Port = req.ServerPort

	if exists, err := d.store.Peers.Exists(peer.Address, peer.Port); err == nil && !exists {
		if err := d.store.Peers.Add(storage.Peer{Address: peer.Address, Port: peer.Port}); err != nil && !errors.Is(err, storage.ErrPeerExists) {
			d.log.Error("record peer failed", logger.Error(err))
		}
	}

	cached, err := d.store.Ciphergrams.ListAll()
	if err != nil {
		d.log.Error("list ciphergrams failed", logger.Error(err))
		return
	}
	resp := wire.ResponseOffline{
		Type:        wire.TypeResponseOffline,
		Ciphergrams: make([]wire.StoredCiphergram, 0, len(cached)),
	}
	for _, cg := range cached {
		resp.Ciphergrams = append(resp.Ciphergrams, wire.StoredCiphergram{
			Content:   cg.Content,
			Timestamp: cg.Timestamp,
		})
	}
	frame, err := json.Marshal(resp)
	if err != nil {
		return
	}
	d.gossip.SendTo(frame, peer)
}

// handleResponseOffline accepts replies only from peers we actually
// asked, then replays each embedded ciphergram without rebroadcast.
func (d *Dispatcher) handleResponseOffline(peer transport.PeerAddr, raw []byte) {
	if !d.gossip.TakeOfflineRequest(peer) {
		metrics.FramesDropped.WithLabelValues(metrics.DropUnsolicited).Inc()
		return
	}
	var resp wire.ResponseOffline
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadStructure).Inc()
		return
	}
	for _, cg := range resp.Ciphergrams {
		d.handleCiphergram(peer, []byte(cg.Content), true)
	}
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
