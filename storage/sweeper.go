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

import (
	"time"

	"github.com/securetalks-project/securetalks/internal/logger"
)

const (
	minSweepInterval = time.Minute
	maxSweepInterval = time.Hour
)

// Sweeper periodically expires ciphergrams and peers in the background.
type Sweeper struct {
	store    *Store
	ttl      int64
	interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewSweeper derives the sweep interval from the ttl (ttl/24, clamped to
// [1m, 1h]).
func NewSweeper(store *Store, ttl int64) *Sweeper {
	interval := time.Duration(ttl) * time.Second / 24
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	if interval > maxSweepInterval {
		interval = maxSweepInterval
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.ticker = time.NewTicker(s.interval)
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			if err := s.store.SweepExpired(s.ttl); err != nil {
				logger.Warn("expiry sweep failed", logger.Error(err))
			}
		case <-s.stop:
			return
		}
	}
}

// Stop halts the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	<-s.done
}
