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

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/securetalks-project/securetalks/storage"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Inspect and manage known peers",
}

var peersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known peer addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPeerStore()
		if err != nil {
			return err
		}
		defer store.Close()

		peers, err := store.Peers.ListAll()
		if err != nil {
			return err
		}
		for _, peer := range peers {
			fmt.Printf("%s:%d\tlast seen %s\n",
				peer.Address, peer.Port,
				time.Unix(peer.LastActivity, 0).Format(time.RFC3339))
		}
		return nil
	},
}

var peersAddCmd = &cobra.Command{
	Use:   "add <ip:port>",
	Short: "Add a peer address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, portStr, err := net.SplitHostPort(args[0])
		if err != nil {
			return fmt.Errorf("expected ip:port, got %q", args[0])
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", portStr)
		}

		store, err := openPeerStore()
		if err != nil {
			return err
		}
		defer store.Close()

		err = store.Peers.Add(storage.Peer{Address: host, Port: port})
		if errors.Is(err, storage.ErrPeerExists) {
			return nil
		}
		return err
	},
}

func openPeerStore() (*storage.Store, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return storage.Open(filepath.Join(dir, "db.sqlite3"))
}

func init() {
	peersCmd.AddCommand(peersListCmd)
	peersCmd.AddCommand(peersAddCmd)
	rootCmd.AddCommand(peersCmd)
}
