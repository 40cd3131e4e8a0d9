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

import "database/sql"

// Ciphergrams caches envelopes this node could not decrypt, keyed by
// (content, timestamp), until they age out.
type Ciphergrams struct {
	db  *sql.DB
	now func() int64
}

// Add inserts a cached ciphergram.
func (c *Ciphergrams) Add(cg Ciphergram) error {
	exists, err := c.Exists(cg)
	if err != nil {
		return err
	}
	if exists {
		return ErrCiphergramExists
	}
	_, err = c.db.Exec(
		"INSERT INTO ciphergrams (content, timestamp) VALUES (?, ?)",
		cg.Content, cg.Timestamp,
	)
	return err
}

// Exists checks the (content, timestamp) key.
func (c *Ciphergrams) Exists(cg Ciphergram) (bool, error) {
	var one int
	err := c.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM ciphergrams WHERE content = ? AND timestamp = ? LIMIT 1)",
		cg.Content, cg.Timestamp,
	).Scan(&one)
	return one != 0, err
}

// ListAll returns every cached ciphergram.
func (c *Ciphergrams) ListAll() ([]Ciphergram, error) {
	rows, err := c.db.Query("SELECT content, timestamp FROM ciphergrams")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cgs []Ciphergram
	for rows.Next() {
		var cg Ciphergram
		if err := rows.Scan(&cg.Content, &cg.Timestamp); err != nil {
			return nil, err
		}
		cgs = append(cgs, cg)
	}
	return cgs, rows.Err()
}

// DeleteExpired removes rows with now - timestamp > ttl.
func (c *Ciphergrams) DeleteExpired(ttl int64) error {
	_, err := c.db.Exec(
		"DELETE FROM ciphergrams WHERE ? - timestamp > ?", c.now(), ttl,
	)
	return err
}
