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
	"bufio"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/securetalks-project/securetalks/storage"
)

// LoadBootstrap seeds the peer table from a bootstrap.list file, one
// ip:port per line. Malformed lines are skipped, duplicates tolerated,
// and a missing file is not an error.
func LoadBootstrap(store *storage.Store, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(line)
		if err != nil {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		if err := store.Peers.Add(storage.Peer{Address: host, Port: port}); err != nil && !errors.Is(err, storage.ErrPeerExists) {
			return err
		}
	}
	return scanner.Err()
}
