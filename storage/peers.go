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

// Peers is the repository of reachable remote addresses, keyed by
// (address, port) and expired by inactivity.
type Peers struct {
	db  *sql.DB
	now func() int64
}

// Add inserts a peer row. Zero LastActivity is stamped with now.
func (p *Peers) Add(peer Peer) error {
	exists, err := p.Exists(peer.Address, peer.Port)
	if err != nil {
		return err
	}
	if exists {
		return ErrPeerExists
	}
	if peer.LastActivity == 0 {
		peer.LastActivity = p.now()
	}
	_, err = p.db.Exec(
		"INSERT INTO peers (address, port, last_activity) VALUES (?, ?, ?)",
		peer.Address, peer.Port, peer.LastActivity,
	)
	return err
}

// UpdateActivity stamps the peer's last_activity with now.
func (p *Peers) UpdateActivity(address string, port int) error {
	res, err := p.db.Exec(
		"UPDATE peers SET last_activity = ? WHERE address = ? AND port = ?",
		p.now(), address, port,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrPeerNotFound
	}
	return nil
}

// Exists reports whether the (address, port) pair is known.
func (p *Peers) Exists(address string, port int) (bool, error) {
	var one int
	err := p.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM peers WHERE address = ? AND port = ? LIMIT 1)",
		address, port,
	).Scan(&one)
	return one != 0, err
}

// ListAll returns every known peer.
func (p *Peers) ListAll() ([]Peer, error) {
	rows, err := p.db.Query("SELECT address, port, last_activity FROM peers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		var peer Peer
		if err := rows.Scan(&peer.Address, &peer.Port, &peer.LastActivity); err != nil {
			return nil, err
		}
		peers = append(peers, peer)
	}
	return peers, rows.Err()
}

// DeleteExpired removes rows with now - last_activity > ttl.
func (p *Peers) DeleteExpired(ttl int64) error {
	_, err := p.db.Exec(
		"DELETE FROM peers WHERE ? - last_activity > ?", p.now(), ttl,
	)
	return err
}
