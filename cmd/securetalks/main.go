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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securetalks-project/securetalks/config"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "securetalks",
	Short: "SecureTalks - decentralized end-to-end encrypted messenger",
	Long: `SecureTalks is a peer-to-peer end-to-end encrypted chat node.

Your public key is your identity: anyone can address you a message by
that key, and the gossip network floods it until you can decrypt it.
Peers cache what they cannot read so you receive messages sent while
you were offline.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default ~/.securetalks)")

	// Commands are registered in their respective files:
	// - run.go:   runCmd
	// - id.go:    idCmd
	// - peers.go: peersCmd
}

func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	return config.DefaultDataDir()
}
