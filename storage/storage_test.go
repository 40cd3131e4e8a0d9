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

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNodes(t *testing.T) {
	store := openTestStore(t)

	t.Run("add twice fails", func(t *testing.T) {
		require.NoError(t, store.Nodes.Add(Node{NodeID: "a", LastActivity: 1000}))
		require.ErrorIs(t, store.Nodes.Add(Node{NodeID: "a"}), ErrNodeExists)
	})

	t.Run("get by id", func(t *testing.T) {
		node, err := store.Nodes.GetByID("a")
		require.NoError(t, err)
		require.Equal(t, Node{NodeID: "a", LastActivity: 1000}, node)

		_, err = store.Nodes.GetByID("missing")
		require.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("list orders by activity desc", func(t *testing.T) {
		require.NoError(t, store.Nodes.Add(Node{NodeID: "b", LastActivity: 3000}))
		require.NoError(t, store.Nodes.Add(Node{NodeID: "c", LastActivity: 2000}))

		nodes, err := store.Nodes.ListAll()
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		require.Equal(t, "b", nodes[0].NodeID)
		require.Equal(t, "c", nodes[1].NodeID)
		require.Equal(t, "a", nodes[2].NodeID)
	})

	t.Run("update activity", func(t *testing.T) {
		require.NoError(t, store.Nodes.UpdateActivity("a"))
		node, err := store.Nodes.GetByID("a")
		require.NoError(t, err)
		require.InDelta(t, time.Now().Unix(), node.LastActivity, 2)

		require.ErrorIs(t, store.Nodes.UpdateActivity("missing"), ErrNodeNotFound)
	})

	t.Run("unread counter", func(t *testing.T) {
		require.NoError(t, store.Nodes.IncrementUnread("a"))
		require.NoError(t, store.Nodes.IncrementUnread("a"))
		node, err := store.Nodes.GetByID("a")
		require.NoError(t, err)
		require.Equal(t, 2, node.UnreadCount)

		require.NoError(t, store.Nodes.ResetUnread("a"))
		node, err = store.Nodes.GetByID("a")
		require.NoError(t, err)
		require.Zero(t, node.UnreadCount)

		require.ErrorIs(t, store.Nodes.IncrementUnread("missing"), ErrNodeNotFound)
		require.ErrorIs(t, store.Nodes.ResetUnread("missing"), ErrNodeNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Nodes.Delete("a"))
		exists, err := store.Nodes.Exists("a")
		require.NoError(t, err)
		require.False(t, exists)

		require.ErrorIs(t, store.Nodes.Delete("a"), ErrNodeNotFound)
	})
}

func TestMessages(t *testing.T) {
	store := openTestStore(t)

	msg := Message{NodeID: "a", Text: "hello", ToMe: true, SenderTimestamp: 10, Timestamp: 20}
	require.NoError(t, store.Messages.Add(msg))

	t.Run("duplicate tuple fails", func(t *testing.T) {
		dup := msg
		dup.Timestamp = 99 // local timestamp is not part of the tuple
		require.ErrorIs(t, store.Messages.Add(dup), ErrMessageExists)
	})

	t.Run("same text different direction is a new row", func(t *testing.T) {
		echo := msg
		echo.ToMe = false
		require.NoError(t, store.Messages.Add(echo))
	})

	t.Run("ordering and limit offset", func(t *testing.T) {
		for i, text := range []string{"m1", "m2", "m3"} {
			require.NoError(t, store.Messages.Add(Message{
				NodeID: "b", Text: text, ToMe: i%2 == 0,
				SenderTimestamp: int64(100 + i), Timestamp: int64(300 - i*100),
			}))
		}

		all, err := store.Messages.GetByNode("b", -1, 0)
		require.NoError(t, err)
		require.Equal(t, []string{"m3", "m2", "m1"}, texts(all))

		limited, err := store.Messages.GetByNode("b", 2, 0)
		require.NoError(t, err)
		require.Equal(t, []string{"m3", "m2"}, texts(limited))

		offset, err := store.Messages.GetByNode("b", 2, 1)
		require.NoError(t, err)
		require.Equal(t, []string{"m2", "m1"}, texts(offset))
	})

	t.Run("delete by node", func(t *testing.T) {
		require.NoError(t, store.Messages.DeleteByNode("b"))
		left, err := store.Messages.GetByNode("b", -1, 0)
		require.NoError(t, err)
		require.Empty(t, left)
	})
}

func texts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestCiphergrams(t *testing.T) {
	store := openTestStore(t)
	store.Ciphergrams.now = func() int64 { return 1000 }

	require.NoError(t, store.Ciphergrams.Add(Ciphergram{Content: "blob", Timestamp: 900}))
	require.ErrorIs(t,
		store.Ciphergrams.Add(Ciphergram{Content: "blob", Timestamp: 900}),
		ErrCiphergramExists,
	)
	// Same content, different timestamp: a distinct key.
	require.NoError(t, store.Ciphergrams.Add(Ciphergram{Content: "blob", Timestamp: 800}))

	t.Run("delete expired is exact on the boundary", func(t *testing.T) {
		// ttl=100: age of ts=900 is exactly 100, which is NOT > ttl.
		require.NoError(t, store.Ciphergrams.DeleteExpired(100))
		left, err := store.Ciphergrams.ListAll()
		require.NoError(t, err)
		require.Len(t, left, 1)
		require.Equal(t, int64(900), left[0].Timestamp)

		require.NoError(t, store.Ciphergrams.DeleteExpired(99))
		left, err = store.Ciphergrams.ListAll()
		require.NoError(t, err)
		require.Empty(t, left)
	})
}

func TestPeers(t *testing.T) {
	store := openTestStore(t)
	store.Peers.now = func() int64 { return 5000 }

	require.NoError(t, store.Peers.Add(Peer{Address: "10.0.0.1", Port: 8001, LastActivity: 4000}))
	require.ErrorIs(t,
		store.Peers.Add(Peer{Address: "10.0.0.1", Port: 8001}),
		ErrPeerExists,
	)
	// Same host on another port is a distinct peer.
	require.NoError(t, store.Peers.Add(Peer{Address: "10.0.0.1", Port: 9001}))

	t.Run("update activity", func(t *testing.T) {
		require.NoError(t, store.Peers.UpdateActivity("10.0.0.1", 8001))
		peers, err := store.Peers.ListAll()
		require.NoError(t, err)
		for _, p := range peers {
			require.Equal(t, int64(5000), p.LastActivity)
		}

		require.ErrorIs(t, store.Peers.UpdateActivity("1.2.3.4", 1), ErrPeerNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		store.Peers.now = func() int64 { return 9000 }
		require.NoError(t, store.Peers.DeleteExpired(3000))
		peers, err := store.Peers.ListAll()
		require.NoError(t, err)
		require.Empty(t, peers)
	})
}

func TestSweepExpired(t *testing.T) {
	store := openTestStore(t)
	store.Ciphergrams.now = func() int64 { return 10000 }
	store.Peers.now = func() int64 { return 10000 }

	require.NoError(t, store.Ciphergrams.Add(Ciphergram{Content: "old", Timestamp: 1}))
	require.NoError(t, store.Peers.Add(Peer{Address: "1.1.1.1", Port: 8001, LastActivity: 1}))
	require.NoError(t, store.Messages.Add(Message{NodeID: "a", Text: "keep", SenderTimestamp: 1, Timestamp: 1}))

	require.NoError(t, store.SweepExpired(100))

	cgs, err := store.Ciphergrams.ListAll()
	require.NoError(t, err)
	require.Empty(t, cgs)

	peers, err := store.Peers.ListAll()
	require.NoError(t, err)
	require.Empty(t, peers)

	// Messages are user data and never expire.
	msgs, err := store.Messages.GetByNode("a", -1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}
