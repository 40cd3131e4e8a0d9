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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/securetalks-project/securetalks/storage"
)

func TestLoadBootstrap(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.list")
	require.NoError(t, os.WriteFile(path, []byte(
		"10.0.0.1:8001\n"+
			"garbage line\n"+
			"10.0.0.2:not-a-port\n"+
			"10.0.0.1:8001\n"+ // duplicate tolerated
			"\n"+
			"10.0.0.3:9001\n",
	), 0o644))

	require.NoError(t, LoadBootstrap(store, path))

	peers, err := store.Peers.ListAll()
	require.NoError(t, err)
	require.Len(t, peers, 2)

	for _, want := range []storage.Peer{
		{Address: "10.0.0.1", Port: 8001},
		{Address: "10.0.0.3", Port: 9001},
	} {
		exists, err := store.Peers.Exists(want.Address, want.Port)
		require.NoError(t, err)
		require.True(t, exists)
	}
}

func TestLoadBootstrapMissingFileIsFine(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, LoadBootstrap(store, filepath.Join(t.TempDir(), "missing.list")))
}
