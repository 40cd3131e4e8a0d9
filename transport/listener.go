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
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/securetalks-project/securetalks/internal/logger"
)

// PeerAddr names a remote node's network endpoint.
type PeerAddr struct {
	Address string
	Port    int
}

func (a PeerAddr) String() string {
	return net.JoinHostPort(a.Address, strconv.Itoa(a.Port))
}

// Inbound is one received frame tagged with its origin. A zero Inbound
// (nil payload) is the dispatcher's termination sentinel.
type Inbound struct {
	Peer    PeerAddr
	Payload []byte
}

const handlerReadTimeout = 30 * time.Second

// Listener accepts one-shot TLS connections and enqueues each decoded
// frame on the inbound channel. Each accepted connection gets its own
// short-lived handler goroutine.
type Listener struct {
	addr    string
	inbound chan<- Inbound

	ln       net.Listener
	handlers sync.WaitGroup
	closing  chan struct{}
	log      logger.Logger
}

// NewListener prepares a listener for the given bind address.
func NewListener(addr string, inbound chan<- Inbound) *Listener {
	return &Listener{
		addr:    addr,
		inbound: inbound,
		closing: make(chan struct{}),
		log:     logger.GetDefaultLogger().WithFields(logger.String("component", "listener")),
	}
}

// Start binds the socket and launches the accept loop.
func (l *Listener) Start() error {
	tlsCfg, err := ServerTLSConfig()
	if err != nil {
		return err
	}
	tcp, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.ln = tls.NewListener(tcp, tlsCfg)
	go l.acceptLoop()
	return nil
}

// Addr returns the bound address, nil before Start.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.closing:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn("accept failed", logger.Error(err))
			continue
		}
		l.handlers.Add(1)
		go l.handle(conn)
	}
}

// handle reads exactly one frame and enqueues it.
func (l *Listener) handle(conn net.Conn) {
	defer l.handlers.Done()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(handlerReadTimeout))
	payload, err := ReadFrame(conn)
	if err != nil {
		return
	}

	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}

	l.inbound <- Inbound{Peer: PeerAddr{Address: host, Port: port}, Payload: payload}
}

// Terminate stops accepting and waits for in-flight handlers to drain.
func (l *Listener) Terminate() {
	close(l.closing)
	if l.ln != nil {
		l.ln.Close()
	}
	l.handlers.Wait()
}
