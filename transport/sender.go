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

package transport

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/securetalks-project/securetalks/crypto/envelope"
	"github.com/securetalks-project/securetalks/internal/logger"
	"github.com/securetalks-project/securetalks/internal/metrics"
	"github.com/securetalks-project/securetalks/storage"
	"github.com/securetalks-project/securetalks/wire"
)

// Outbound is one unit of work for the sending worker. A non-empty
// RecipientHex marks Payload as a plaintext chat body to encrypt first;
// otherwise Payload is an already-framed JSON message sent as-is.
type Outbound struct {
	Recipients   []PeerAddr
	Payload      []byte
	RecipientHex string
}

// Sender owns the outbound queue: it encrypts on demand and delivers
// each frame over a fresh one-shot TLS connection per recipient.
type Sender struct {
	codec  *envelope.Codec
	store  *storage.Store
	myPort int

	queue chan Outbound
	stop  chan struct{}
	done  chan struct{}
	log   logger.Logger

	mu               sync.Mutex
	offlineRequested map[string]struct{}
}

// NewSender wires the sending worker; call Start to launch it.
func NewSender(codec *envelope.Codec, store *storage.Store, myPort int) *Sender {
	return &Sender{
		codec:            codec,
		store:            store,
		myPort:           myPort,
		queue:            make(chan Outbound, 64),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
		offlineRequested: make(map[string]struct{}),
		log:              logger.GetDefaultLogger().WithFields(logger.String("component", "sender")),
	}
}

// Start launches the worker goroutine.
func (s *Sender) Start() {
	go s.run()
}

func (s *Sender) run() {
	defer close(s.done)
	for {
		select {
		case out := <-s.queue:
			s.process(out)
		case <-s.stop:
			return
		}
	}
}

func (s *Sender) process(out Outbound) {
	frame := out.Payload
	if out.RecipientHex != "" {
		sealStart := time.Now()
		env, err := s.codec.Seal(out.RecipientHex, string(out.Payload))
		metrics.PowDuration.Observe(time.Since(sealStart).Seconds())
		if errors.Is(err, envelope.ErrInvalidRecipient) {
			return // drop, per contract
		}
		if err != nil {
			s.log.Error("seal outbound message failed", logger.Error(err))
			return
		}
		frame, err = json.Marshal(wire.Ciphergram{
			Type:       wire.TypeCiphergram,
			ServerPort: s.myPort,
			Envelope:   *env,
		})
		if err != nil {
			return
		}
	}
	s.deliver(out.Recipients, frame)
}

// deliver fans the frame out; any I/O error aborts that recipient only.
func (s *Sender) deliver(recipients []PeerAddr, frame []byte) {
	for _, peer := range recipients {
		conn, err := tls.Dial("tcp", peer.String(), ClientTLSConfig())
		if err != nil {
			s.log.Debug("dial failed", logger.String("peer", peer.String()), logger.Error(err))
			continue
		}
		if err := WriteFrame(conn, frame); err != nil {
			s.log.Debug("send failed", logger.String("peer", peer.String()), logger.Error(err))
		} else {
			metrics.MessagesSent.Inc()
		}
		conn.Close()
	}
}

// SendUserMessage broadcasts a chat body addressed to recipientHex to
// every known peer; encryption happens on the worker.
func (s *Sender) SendUserMessage(recipientHex, text string) error {
	peers, err := s.knownPeers()
	if err != nil {
		return err
	}
	s.enqueue(Outbound{Recipients: peers, Payload: []byte(text), RecipientHex: recipientHex})
	return nil
}

// SendTo delivers an already-framed message to a single peer.
func (s *Sender) SendTo(frame []byte, peer PeerAddr) {
	s.enqueue(Outbound{Recipients: []PeerAddr{peer}, Payload: frame})
}

// Broadcast fans a frame out to every known peer.
func (s *Sender) Broadcast(frame []byte) error {
	peers, err := s.knownPeers()
	if err != nil {
		return err
	}
	s.enqueue(Outbound{Recipients: peers, Payload: frame})
	return nil
}

// BroadcastFrom fans a frame out to every known peer except the origin.
// The origin's port is ephemeral, so exclusion matches on address only;
// an origin absent from the peer list is tolerated.
func (s *Sender) BroadcastFrom(frame []byte, origin PeerAddr) error {
	peers, err := s.knownPeers()
	if err != nil {
		return err
	}
	filtered := peers[:0]
	for _, peer := range peers {
		if peer.Address != origin.Address {
			filtered = append(filtered, peer)
		}
	}
	s.enqueue(Outbound{Recipients: filtered, Payload: frame})
	return nil
}

// RequestOfflineData snapshots the current peer list as the set of
// allowed responders, then broadcasts the request.
func (s *Sender) RequestOfflineData() error {
	peers, err := s.knownPeers()
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, peer := range peers {
		s.offlineRequested[peer.Address] = struct{}{}
	}
	s.mu.Unlock()

	frame, err := json.Marshal(wire.RequestOffline{
		Type:       wire.TypeRequestOffline,
		ServerPort: s.myPort,
	})
	if err != nil {
		return err
	}
	s.enqueue(Outbound{Recipients: peers, Payload: frame})
	return nil
}

// TakeOfflineRequest consumes the pending-request marker for the peer.
// It reports false when the peer was never asked, which is the gate
// against unsolicited offline responses.
func (s *Sender) TakeOfflineRequest(peer PeerAddr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offlineRequested[peer.Address]; !ok {
		return false
	}
	delete(s.offlineRequested, peer.Address)
	return true
}

// Alive reports whether the sending worker is still running; used by
// the health checker.
func (s *Sender) Alive() error {
	select {
	case <-s.done:
		return errors.New("transport: sender worker stopped")
	case <-s.stop:
		return errors.New("transport: sender terminating")
	default:
		return nil
	}
}

// Terminate stops the worker and waits for it to exit.
func (s *Sender) Terminate() {
	close(s.stop)
	<-s.done
}

func (s *Sender) enqueue(out Outbound) {
	select {
	case s.queue <- out:
	case <-s.stop:
	}
}

func (s *Sender) knownPeers() ([]PeerAddr, error) {
	stored, err := s.store.Peers.ListAll()
	if err != nil {
		return nil, err
	}
	peers := make([]PeerAddr, 0, len(stored))
	for _, p := range stored {
		peers = append(peers, PeerAddr{Address: p.Address, Port: p.Port})
	}
	return peers, nil
}
