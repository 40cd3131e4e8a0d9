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

// Package presenter adapts store state for the UI and executes UI
// commands. It is stateless; missing entities on user actions become
// silent no-ops, never crashes.
package presenter

import (
	"errors"
	"time"

	"github.com/securetalks-project/securetalks/crypto/keys"
	"github.com/securetalks-project/securetalks/storage"
)

// MessageSender is the slice of the sending worker the presenter needs.
type MessageSender interface {
	SendUserMessage(recipientHex, text string) error
}

// Dialog is one UI entry: a node plus its whole message history.
type Dialog struct {
	storage.Node
	Messages []storage.Message `json:"messages"`
}

// Presenter mediates between the UI and the store, sender and keys.
type Presenter struct {
	store  *storage.Store
	sender MessageSender
	keys   *keys.Provider

	now func() int64
}

// New wires a presenter.
func New(store *storage.Store, sender MessageSender, provider *keys.Provider) *Presenter {
	return &Presenter{
		store:  store,
		sender: sender,
		keys:   provider,
		now:    func() int64 { return time.Now().Unix() },
	}
}

// ListDialogs returns every known node with its history, most recently
// active dialog first.
func (p *Presenter) ListDialogs() ([]Dialog, error) {
	nodes, err := p.store.Nodes.ListAll()
	if err != nil {
		return nil, err
	}
	dialogs := make([]Dialog, 0, len(nodes))
	for _, node := range nodes {
		msgs, err := p.store.Messages.GetByNode(node.NodeID, -1, 0)
		if err != nil {
			return nil, err
		}
		dialogs = append(dialogs, Dialog{Node: node, Messages: msgs})
	}
	return dialogs, nil
}

// SendMessage appends an outgoing message to the dialog and hands the
// plaintext to the sender. An unknown node id is a no-op.
func (p *Presenter) SendMessage(nodeID, text string) error {
	node, err := p.store.Nodes.GetByID(nodeID)
	if err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	err = p.store.Messages.Add(storage.Message{
		NodeID:          node.NodeID,
		Text:            text,
		ToMe:            false,
		SenderTimestamp: now,
		Timestamp:       now,
	})
	if err != nil && !errors.Is(err, storage.ErrMessageExists) {
		return err
	}
	return p.sender.SendUserMessage(node.NodeID, text)
}

// AddDialog registers a contact; an existing one is left untouched.
func (p *Presenter) AddDialog(nodeID, alias string) error {
	err := p.store.Nodes.Add(storage.Node{NodeID: nodeID, Alias: alias})
	if errors.Is(err, storage.ErrNodeExists) {
		return nil
	}
	return err
}

// DeleteDialog removes the contact and its whole history.
func (p *Presenter) DeleteDialog(nodeID string) error {
	if err := p.store.Nodes.Delete(nodeID); err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			return nil
		}
		return err
	}
	return p.store.Messages.DeleteByNode(nodeID)
}

// MarkRead resets the dialog's unread counter.
func (p *Presenter) MarkRead(nodeID string) error {
	err := p.store.Nodes.ResetUnread(nodeID)
	if errors.Is(err, storage.ErrNodeNotFound) {
		return nil
	}
	return err
}

// SetAlias renames a contact. Delete plus re-add keeps the row
// invariants in one place.
func (p *Presenter) SetAlias(nodeID, alias string) error {
	node, err := p.store.Nodes.GetByID(nodeID)
	if err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			return nil
		}
		return err
	}
	if err := p.store.Nodes.Delete(node.NodeID); err != nil {
		return err
	}
	node.Alias = alias
	return p.store.Nodes.Add(node)
}

// MyID returns this node's hex id.
func (p *Presenter) MyID() (string, error) {
	return p.keys.PublicKeyHex()
}
