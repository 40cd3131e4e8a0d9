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

// Messages is the repository of plaintext chat history. Rows are unique
// on (node_id, text, to_me, sender_timestamp) and never expire.
type Messages struct {
	db *sql.DB
}

// Add inserts a message.
func (m *Messages) Add(msg Message) error {
	exists, err := m.Exists(msg)
	if err != nil {
		return err
	}
	if exists {
		return ErrMessageExists
	}
	_, err = m.db.Exec(
		"INSERT INTO messages (node_id, text, to_me, sender_timestamp, timestamp) VALUES (?, ?, ?, ?, ?)",
		msg.NodeID, msg.Text, boolToInt(msg.ToMe), msg.SenderTimestamp, msg.Timestamp,
	)
	return err
}

// Exists checks the uniqueness tuple.
func (m *Messages) Exists(msg Message) (bool, error) {
	var one int
	err := m.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM messages
		 WHERE node_id = ? AND text = ? AND to_me = ? AND sender_timestamp = ? LIMIT 1)`,
		msg.NodeID, msg.Text, boolToInt(msg.ToMe), msg.SenderTimestamp,
	).Scan(&one)
	return one != 0, err
}

// GetByNode returns the dialog history with a node ordered by timestamp
// ascending. limit < 0 means all rows; offset rows are skipped first and
// limit counts from there.
func (m *Messages) GetByNode(nodeID string, limit, offset int) ([]Message, error) {
	if limit < 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := m.db.Query(
		`SELECT node_id, text, to_me, sender_timestamp, timestamp FROM messages
		 WHERE node_id = ? ORDER BY timestamp ASC LIMIT ? OFFSET ?`,
		nodeID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var msg Message
		var toMe int
		if err := rows.Scan(&msg.NodeID, &msg.Text, &toMe, &msg.SenderTimestamp, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.ToMe = toMe != 0
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteByNode drops a node's whole history.
func (m *Messages) DeleteByNode(nodeID string) error {
	_, err := m.db.Exec("DELETE FROM messages WHERE node_id = ?", nodeID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
