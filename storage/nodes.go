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

// Nodes is the repository of known remote identities.
type Nodes struct {
	db  *sql.DB
	now func() int64
}

// Add inserts a node row. Zero LastActivity is stamped with now.
func (n *Nodes) Add(node Node) error {
	exists, err := n.Exists(node.NodeID)
	if err != nil {
		return err
	}
	if exists {
		return ErrNodeExists
	}
	if node.LastActivity == 0 {
		node.LastActivity = n.now()
	}
	_, err = n.db.Exec(
		"INSERT INTO nodes (node_id, last_activity, unread_count, alias) VALUES (?, ?, ?, ?)",
		node.NodeID, node.LastActivity, node.UnreadCount, node.Alias,
	)
	return err
}

// Delete removes a node row.
func (n *Nodes) Delete(nodeID string) error {
	res, err := n.db.Exec("DELETE FROM nodes WHERE node_id = ?", nodeID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// GetByID fetches a single node.
func (n *Nodes) GetByID(nodeID string) (Node, error) {
	var node Node
	err := n.db.QueryRow(
		"SELECT node_id, last_activity, unread_count, alias FROM nodes WHERE node_id = ?",
		nodeID,
	).Scan(&node.NodeID, &node.LastActivity, &node.UnreadCount, &node.Alias)
	if err == sql.ErrNoRows {
		return Node{}, ErrNodeNotFound
	}
	return node, err
}

// ListAll returns every node, most recently active first.
func (n *Nodes) ListAll() ([]Node, error) {
	rows, err := n.db.Query(
		"SELECT node_id, last_activity, unread_count, alias FROM nodes ORDER BY last_activity DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var node Node
		if err := rows.Scan(&node.NodeID, &node.LastActivity, &node.UnreadCount, &node.Alias); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// UpdateActivity stamps the node's last_activity with now.
func (n *Nodes) UpdateActivity(nodeID string) error {
	res, err := n.db.Exec(
		"UPDATE nodes SET last_activity = ? WHERE node_id = ?", n.now(), nodeID,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// IncrementUnread bumps the unread counter by one.
func (n *Nodes) IncrementUnread(nodeID string) error {
	res, err := n.db.Exec(
		"UPDATE nodes SET unread_count = unread_count + 1 WHERE node_id = ?", nodeID,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// ResetUnread sets the unread counter back to zero.
func (n *Nodes) ResetUnread(nodeID string) error {
	res, err := n.db.Exec(
		"UPDATE nodes SET unread_count = 0 WHERE node_id = ?", nodeID,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// Exists reports whether the node id is known.
func (n *Nodes) Exists(nodeID string) (bool, error) {
	var one int
	err := n.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM nodes WHERE node_id = ? LIMIT 1)", nodeID,
	).Scan(&one)
	return one != 0, err
}
