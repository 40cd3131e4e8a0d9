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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const configFileName = "config.txt"

// Load reads <dir>/config.txt and builds the configuration. A missing
// file yields pure defaults. Values support ${VAR:default} environment
// substitution; an optional <dir>/.env is loaded first so deployments
// can keep overrides next to the data.
func Load(dir string) (*Config, error) {
	// Ignore a missing .env; it is purely optional.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := Default(dir)

	raw, err := os.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", configFileName, err)
	}

	file, err := ini.Load([]byte(SubstituteEnvVars(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configFileName, err)
	}

	server := file.Section("Server")
	if key := server.Key("address"); key.String() != "" {
		cfg.Server.Address = key.String()
	}
	if key := server.Key("port"); key.String() != "" {
		cfg.Server.Port = key.MustInt(DefaultServerPort)
	}

	gui := file.Section("GUI")
	if key := gui.Key("port"); key.String() != "" {
		cfg.GUI.Port = key.MustInt(DefaultGUIPort)
	}

	metricsSec := file.Section("Metrics")
	if key := metricsSec.Key("port"); key.String() != "" {
		cfg.Metrics.Port = key.MustInt(0)
	}

	nodeSec := file.Section("Node")
	if key := nodeSec.Key("ttl"); key.String() != "" {
		cfg.TTL = key.MustInt64(DefaultTTL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads the configuration or panics; for wiring code where a
// broken config is unrecoverable anyway.
func MustLoad(dir string) *Config {
	cfg, err := Load(dir)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
