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

// Package gui bridges the presenter to the browser UI over WebSocket.
// Events are JSON {"name": ..., "data": ...} frames; the server binds
// loopback only.
package gui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/securetalks-project/securetalks/internal/logger"
	"github.com/securetalks-project/securetalks/presenter"
	"github.com/securetalks-project/securetalks/storage"
)

// Event is one UI frame in either direction.
type Event struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

const writeTimeout = 10 * time.Second

// Server owns the WebSocket clients and translates events into
// presenter calls.
type Server struct {
	presenter *presenter.Presenter
	upgrader  websocket.Upgrader
	webDir    string

	mu      sync.Mutex
	clients map[string]*client

	httpServer *http.Server
	log        logger.Logger

	callbackMu    sync.Mutex
	termCallbacks []func()
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewServer wires a UI server over the presenter. webDir, when
// non-empty, is served as the static UI bundle.
func NewServer(p *presenter.Presenter, webDir string) *Server {
	return &Server{
		presenter: p,
		webDir:    webDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The server binds loopback only; the browser origin is
			// whatever port the bundle was served from.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		log:     logger.GetDefaultLogger().WithFields(logger.String("component", "gui")),
	}
}

// Serve blocks serving the UI on addr until the context is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	if s.webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
	}

	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// AddTerminationCallback registers a function run when the UI asks the
// node to shut down.
func (s *Server) AddTerminationCallback(cb func()) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	s.termCallbacks = append(s.termCallbacks, cb)
}

// Terminate runs the registered termination callbacks once.
func (s *Server) Terminate() {
	s.callbackMu.Lock()
	callbacks := s.termCallbacks
	s.termCallbacks = nil
	s.callbackMu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// PushMessage implements the dispatcher's Notifier: one Message dict
// flattened with its Node dict, fanned out to every client.
func (s *Server) PushMessage(node storage.Node, msg storage.Message) {
	// Flattened by hand: both structs carry a node_id field, which
	// embedding would silently drop from the JSON.
	payload, err := json.Marshal(map[string]any{
		"node_id":          node.NodeID,
		"last_activity":    node.LastActivity,
		"unread_count":     node.UnreadCount,
		"alias":            node.Alias,
		"text":             msg.Text,
		"to_me":            msg.ToMe,
		"sender_timestamp": msg.SenderTimestamp,
		"timestamp":        msg.Timestamp,
	})
	if err != nil {
		return
	}
	s.broadcast(Event{Name: "push_message", Data: payload})
}

func (s *Server) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		select {
		case c.send <- ev:
		default:
			// A stalled client loses the event rather than the node.
			s.log.Warn("client send buffer full", logger.String("client", id))
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	c := &client{conn: conn, send: make(chan Event, 16)}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(id, c)
}

func (s *Server) readLoop(id string, c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		last := len(s.clients) == 0
		s.mu.Unlock()
		close(c.send)
		c.conn.Close()
		// The UI going away is the user closing the app.
		if last {
			s.Terminate()
		}
	}()

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}
		s.dispatch(c, ev)
	}
}

func (s *Server) writeLoop(c *client) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// dispatch routes one UI event. UI-originated failures are logged and
// swallowed; the browser never sees an error frame.
func (s *Server) dispatch(c *client, ev Event) {
	switch ev.Name {
	case "get_dialogs":
		dialogs, err := s.presenter.ListDialogs()
		if err != nil {
			s.log.Error("list dialogs failed", logger.Error(err))
			return
		}
		s.reply(c, "get_dialogs_result", dialogs)

	case "send_message":
		var args [2]string
		if err := json.Unmarshal(ev.Data, &args); err != nil {
			return
		}
		if err := s.presenter.SendMessage(args[0], args[1]); err != nil {
			s.log.Error("send message failed", logger.Error(err))
		}

	case "add_dialog":
		var args []string
		if err := json.Unmarshal(ev.Data, &args); err != nil || len(args) == 0 {
			return
		}
		alias := ""
		if len(args) > 1 {
			alias = args[1]
		}
		if err := s.presenter.AddDialog(args[0], alias); err != nil {
			s.log.Error("add dialog failed", logger.Error(err))
		}

	case "delete_dialog":
		var nodeID string
		if err := json.Unmarshal(ev.Data, &nodeID); err != nil {
			return
		}
		if err := s.presenter.DeleteDialog(nodeID); err != nil {
			s.log.Error("delete dialog failed", logger.Error(err))
		}

	case "make_dialog_read":
		var nodeID string
		if err := json.Unmarshal(ev.Data, &nodeID); err != nil {
			return
		}
		if err := s.presenter.MarkRead(nodeID); err != nil {
			s.log.Error("mark read failed", logger.Error(err))
		}

	case "set_alias":
		var args [2]string
		if err := json.Unmarshal(ev.Data, &args); err != nil {
			return
		}
		if err := s.presenter.SetAlias(args[0], args[1]); err != nil {
			s.log.Error("set alias failed", logger.Error(err))
		}

	case "get_my_id":
		id, err := s.presenter.MyID()
		if err != nil {
			s.log.Error("node id lookup failed", logger.Error(err))
			return
		}
		s.reply(c, "get_my_id_result", id)

	case "terminate":
		s.Terminate()
	}
}

func (s *Server) reply(c *client, name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	select {
	case c.send <- Event{Name: name, Data: payload}:
	default:
	}
}
