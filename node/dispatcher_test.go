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

package node

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/securetalks-project/securetalks/crypto/envelope"
	"github.com/securetalks-project/securetalks/crypto/keys"
	"github.com/securetalks-project/securetalks/storage"
	"github.com/securetalks-project/securetalks/transport"
	"github.com/securetalks-project/securetalks/wire"
)

type sentFrame struct {
	frame []byte
	peer  transport.PeerAddr
}

type fakeGossip struct {
	sent       []sentFrame
	broadcasts []sentFrame
	requested  map[string]bool
}

func (g *fakeGossip) SendTo(frame []byte, peer transport.PeerAddr) {
	g.sent = append(g.sent, sentFrame{frame: frame, peer: peer})
}

func (g *fakeGossip) BroadcastFrom(frame []byte, origin transport.PeerAddr) error {
	g.broadcasts = append(g.broadcasts, sentFrame{frame: frame, peer: origin})
	return nil
}

func (g *fakeGossip) TakeOfflineRequest(peer transport.PeerAddr) bool {
	if !g.requested[peer.Address] {
		return false
	}
	delete(g.requested, peer.Address)
	return true
}

type pushed struct {
	node storage.Node
	msg  storage.Message
}

type fakeNotifier struct {
	pushes []pushed
}

func (n *fakeNotifier) PushMessage(node storage.Node, msg storage.Message) {
	n.pushes = append(n.pushes, pushed{node: node, msg: msg})
}

type harness struct {
	dispatcher *Dispatcher
	store      *storage.Store
	gossip     *fakeGossip
	ui         *fakeNotifier
}

func newHarness(t *testing.T, provider *keys.Provider, ttl int64) *harness {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gossip := &fakeGossip{requested: make(map[string]bool)}
	ui := &fakeNotifier{}
	d := NewDispatcher(nil, store, envelope.NewCodec(provider), gossip, ui, ttl)
	return &harness{dispatcher: d, store: store, gossip: gossip, ui: ui}
}

func sealedFrame(t *testing.T, sender *keys.Provider, recipientHex, text string) ([]byte, *envelope.Envelope) {
	t.Helper()
	env, err := envelope.NewCodec(sender).Seal(recipientHex, text)
	require.NoError(t, err)
	frame, err := json.Marshal(wire.Ciphergram{
		Type:       wire.TypeCiphergram,
		ServerPort: 8001,
		Envelope:   *env,
	})
	require.NoError(t, err)
	return frame, env
}

var origin = transport.PeerAddr{Address: "1.1.1.1", Port: 0}

func TestCiphergramForMeIsStoredAndRebroadcast(t *testing.T) {
	senderKeys := keys.NewProvider(t.TempDir())
	senderID, err := senderKeys.PublicKeyHex()
	require.NoError(t, err)

	recipientKeys := keys.NewProvider(t.TempDir())
	recipientID, err := recipientKeys.PublicKeyHex()
	require.NoError(t, err)

	h := newHarness(t, recipientKeys, 3600)
	frame, env := sealedFrame(t, senderKeys, recipientID, "Message from sender")
	h.dispatcher.Handle(origin, frame)

	msgs, err := h.store.Messages.GetByNode(senderID, -1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "Message from sender", msgs[0].Text)
	require.True(t, msgs[0].ToMe)
	require.Equal(t, env.Timestamp, msgs[0].SenderTimestamp)

	// The sender got a node row with one unread message.
	node, err := h.store.Nodes.GetByID(senderID)
	require.NoError(t, err)
	require.Equal(t, 1, node.UnreadCount)

	// No ciphergram row, one rebroadcast excluding the origin, one UI
	// push.
	cgs, err := h.store.Ciphergrams.ListAll()
	require.NoError(t, err)
	require.Empty(t, cgs)
	require.Len(t, h.gossip.broadcasts, 1)
	require.Equal(t, origin, h.gossip.broadcasts[0].peer)
	require.Len(t, h.ui.pushes, 1)
	require.Equal(t, "Message from sender", h.ui.pushes[0].msg.Text)
}

func TestCiphergramNotForMeIsCachedAndForwarded(t *testing.T) {
	senderKeys := keys.NewProvider(t.TempDir())
	recipientKeys := keys.NewProvider(t.TempDir())
	recipientID, err := recipientKeys.PublicKeyHex()
	require.NoError(t, err)

	// The dispatcher only holds the sender's own keys, so the envelope
	// addressed to the recipient cannot be opened here.
	h := newHarness(t, senderKeys, 3600)
	frame, env := sealedFrame(t, senderKeys, recipientID, "not mine")
	h.dispatcher.Handle(origin, frame)

	cgs, err := h.store.Ciphergrams.ListAll()
	require.NoError(t, err)
	require.Len(t, cgs, 1)
	require.Equal(t, string(frame), cgs[0].Content)
	require.Equal(t, env.Timestamp, cgs[0].Timestamp)

	nodes, err := h.store.Nodes.ListAll()
	require.NoError(t, err)
	require.Empty(t, nodes)
	require.Len(t, h.gossip.broadcasts, 1)

	t.Run("duplicate is suppressed but still forwarded", func(t *testing.T) {
		h.dispatcher.Handle(origin, frame)
		cgs, err := h.store.Ciphergrams.ListAll()
		require.NoError(t, err)
		require.Len(t, cgs, 1)
		require.Len(t, h.gossip.broadcasts, 2)
	})
}

func TestCiphergramWithBrokenProofIsDropped(t *testing.T) {
	senderKeys := keys.NewProvider(t.TempDir())
	recipientKeys := keys.NewProvider(t.TempDir())
	recipientID, err := recipientKeys.PublicKeyHex()
	require.NoError(t, err)

	h := newHarness(t, recipientKeys, 3600)
	_, env := sealedFrame(t, senderKeys, recipientID, "payload")

	forged := *env
	forged.Proof = 1
	frame, err := json.Marshal(wire.Ciphergram{Type: wire.TypeCiphergram, Envelope: forged})
	require.NoError(t, err)

	h.dispatcher.Handle(origin, frame)

	requireNoStorage(t, h)
	require.Empty(t, h.gossip.broadcasts)
}

func TestStaleCiphergramIsDropped(t *testing.T) {
	senderKeys := keys.NewProvider(t.TempDir())
	recipientKeys := keys.NewProvider(t.TempDir())
	recipientID, err := recipientKeys.PublicKeyHex()
	require.NoError(t, err)

	h := newHarness(t, recipientKeys, 0)
	frame, env := sealedFrame(t, senderKeys, recipientID, "late")
	h.dispatcher.now = func() int64 { return env.Timestamp + 5 }

	h.dispatcher.Handle(origin, frame)

	requireNoStorage(t, h)
	require.Empty(t, h.gossip.broadcasts)
}

func requireNoStorage(t *testing.T, h *harness) {
	t.Helper()
	cgs, err := h.store.Ciphergrams.ListAll()
	require.NoError(t, err)
	require.Empty(t, cgs)
	nodes, err := h.store.Nodes.ListAll()
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestUnparsableFramesAreDropped(t *testing.T) {
	h := newHarness(t, keys.NewProvider(t.TempDir()), 3600)

	h.dispatcher.Handle(origin, []byte("not json"))
	h.dispatcher.Handle(origin, []byte(`{"no_type":1}`))
	h.dispatcher.Handle(origin, []byte(`{"type":"warp_drive"}`))
	h.dispatcher.Handle(origin, []byte(`{"type":"ciphergram"}`))

	requireNoStorage(t, h)
	require.Empty(t, h.gossip.broadcasts)
	require.Empty(t, h.gossip.sent)
}

func TestRequestOfflineData(t *testing.T) {
	h := newHarness(t, keys.NewProvider(t.TempDir()), 3600)

	require.NoError(t, h.store.Ciphergrams.Add(storage.Ciphergram{Content: "cg1", Timestamp: 100}))
	require.NoError(t, h.store.Ciphergrams.Add(storage.Ciphergram{Content: "cg2", Timestamp: 200}))

	// Observed from an ephemeral port; the payload names the real one.
	h.dispatcher.Handle(
		transport.PeerAddr{Address: "2.2.2.2", Port: 55555},
		[]byte(`{"type":"request_offline_data","server_port":9000}`),
	)

	exists, err := h.store.Peers.Exists("2.2.2.2", 9000)
	require.NoError(t, err)
	require.True(t, exists)

	require.Len(t, h.gossip.sent, 1)
	require.Equal(t, transport.PeerAddr{Address: "2.2.2.2", Port: 9000}, h.gossip.sent[0].peer)

	var resp wire.ResponseOffline
	require.NoError(t, json.Unmarshal(h.gossip.sent[0].frame, &resp))
	require.Equal(t, wire.TypeResponseOffline, resp.Type)
	require.Len(t, resp.Ciphergrams, 2)

	t.Run("missing port is dropped", func(t *testing.T) {
		h.dispatcher.Handle(origin, []byte(`{"type":"request_offline_data"}`))
		require.Len(t, h.gossip.sent, 1)
	})
}

func TestResponseOfflineData(t *testing.T) {
	senderKeys := keys.NewProvider(t.TempDir())
	recipientKeys := keys.NewProvider(t.TempDir())
	recipientID, err := recipientKeys.PublicKeyHex()
	require.NoError(t, err)

	h := newHarness(t, recipientKeys, 3600)
	frame, _ := sealedFrame(t, senderKeys, recipientID, "replayed while offline")

	resp, err := json.Marshal(wire.ResponseOffline{
		Type: wire.TypeResponseOffline,
		Ciphergrams: []wire.StoredCiphergram{
			{Content: string(frame), Timestamp: 100},
		},
	})
	require.NoError(t, err)

	responder := transport.PeerAddr{Address: "3.3.3.3", Port: 9000}

	t.Run("unsolicited response is dropped entirely", func(t *testing.T) {
		h.dispatcher.Handle(responder, resp)

		senderID, err := senderKeys.PublicKeyHex()
		require.NoError(t, err)
		msgs, err := h.store.Messages.GetByNode(senderID, -1, 0)
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("solicited response replays without rebroadcast", func(t *testing.T) {
		h.gossip.requested["3.3.3.3"] = true
		h.dispatcher.Handle(responder, resp)

		senderID, err := senderKeys.PublicKeyHex()
		require.NoError(t, err)
		msgs, err := h.store.Messages.GetByNode(senderID, -1, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, "replayed while offline", msgs[0].Text)

		// Offline replays never re-enter the flood.
		require.Empty(t, h.gossip.broadcasts)
	})

	t.Run("second response is gated again", func(t *testing.T) {
		h.dispatcher.Handle(responder, resp)
		require.Empty(t, h.gossip.broadcasts)
		require.False(t, h.gossip.requested["3.3.3.3"])
	})
}

func TestKnownPeerActivityIsRefreshed(t *testing.T) {
	h := newHarness(t, keys.NewProvider(t.TempDir()), 3600)
	require.NoError(t, h.store.Peers.Add(storage.Peer{Address: "4.4.4.4", Port: 8001, LastActivity: 1}))

	h.dispatcher.Handle(
		transport.PeerAddr{Address: "4.4.4.4", Port: 8001},
		[]byte(`{"type":"warp_drive"}`),
	)

	peers, err := h.store.Peers.ListAll()
	require.NoError(t, err)
	require.Greater(t, peers[0].LastActivity, int64(1))
}
