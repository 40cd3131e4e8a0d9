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

// Package storage is the durable single-file repository of nodes,
// messages, cached ciphergrams and peers. Every mutating operation
// auto-commits; writers are serialized on one connection.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	node_id       TEXT NOT NULL,
	last_activity INTEGER NOT NULL,
	unread_count  INTEGER NOT NULL DEFAULT 0,
	alias         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (node_id)
);
CREATE TABLE IF NOT EXISTS messages (
	node_id          TEXT NOT NULL,
	text             TEXT NOT NULL,
	to_me            INTEGER NOT NULL,
	sender_timestamp INTEGER NOT NULL,
	timestamp        INTEGER NOT NULL,
	UNIQUE (node_id, text, to_me, sender_timestamp)
);
CREATE TABLE IF NOT EXISTS ciphergrams (
	content   TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	PRIMARY KEY (content, timestamp)
);
CREATE TABLE IF NOT EXISTS peers (
	address       TEXT NOT NULL,
	port          INTEGER NOT NULL,
	last_activity INTEGER NOT NULL,
	PRIMARY KEY (address, port)
);
`

// Store owns the database and hands out the per-table repositories.
type Store struct {
	db *sql.DB

	Nodes       *Nodes
	Messages    *Messages
	Ciphergrams *Ciphergrams
	Peers       *Peers
}

// Open opens (creating if needed) the database file and bootstraps the
// schema. Schema failure here is the one fatal startup condition.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// One connection serializes all writers; sqlite allows only one
	// writer at a time anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	now := func() int64 { return time.Now().Unix() }
	return &Store{
		db:          db,
		Nodes:       &Nodes{db: db, now: now},
		Messages:    &Messages{db: db},
		Ciphergrams: &Ciphergrams{db: db, now: now},
		Peers:       &Peers{db: db, now: now},
	}, nil
}

// SweepExpired deletes ciphergrams and peers older than ttl. Messages
// are user data and are never expired.
func (s *Store) SweepExpired(ttl int64) error {
	if err := s.Ciphergrams.DeleteExpired(ttl); err != nil {
		return err
	}
	return s.Peers.DeleteExpired(ttl)
}

// Ping verifies the database is still reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
