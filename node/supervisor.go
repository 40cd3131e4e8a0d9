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

package node

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/securetalks-project/securetalks/config"
	"github.com/securetalks-project/securetalks/crypto/envelope"
	"github.com/securetalks-project/securetalks/crypto/keys"
	"github.com/securetalks-project/securetalks/gui"
	"github.com/securetalks-project/securetalks/internal/logger"
	"github.com/securetalks-project/securetalks/internal/metrics"
	"github.com/securetalks-project/securetalks/pkg/health"
	"github.com/securetalks-project/securetalks/presenter"
	"github.com/securetalks-project/securetalks/storage"
	"github.com/securetalks-project/securetalks/transport"
)

const (
	dbFileName        = "db.sqlite3"
	bootstrapFileName = "bootstrap.list"
	webDirName        = "web"
)

// Supervisor wires every component, owns their lifecycles and runs the
// node until the context is cancelled.
type Supervisor struct {
	cfg *config.Config
	log logger.Logger
}

// NewSupervisor prepares a supervisor for the given configuration.
func NewSupervisor(cfg *config.Config) *Supervisor {
	return &Supervisor{
		cfg: cfg,
		log: logger.GetDefaultLogger().WithFields(logger.String("component", "supervisor")),
	}
}

// Run starts the node and blocks until ctx is cancelled or a component
// fails fatally. Shutdown order: sender, listener, dispatcher, store.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("node: create data dir: %w", err)
	}

	store, err := storage.Open(filepath.Join(s.cfg.DataDir, dbFileName))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := LoadBootstrap(store, filepath.Join(s.cfg.DataDir, bootstrapFileName)); err != nil {
		s.log.Warn("bootstrap load failed", logger.Error(err))
	}

	provider := keys.NewProvider(s.cfg.DataDir)
	nodeID, err := provider.PublicKeyHex()
	if err != nil {
		return err
	}
	s.log.Info("node identity ready", logger.Int("id_length", len(nodeID)))

	codec := envelope.NewCodec(provider)
	inbound := make(chan transport.Inbound, 128)

	sender := transport.NewSender(codec, store, s.cfg.Server.Port)
	sender.Start()

	listener := transport.NewListener(s.cfg.ServerAddr(), inbound)
	if err := listener.Start(); err != nil {
		sender.Terminate()
		return err
	}
	s.log.Info("listening for peers", logger.String("address", s.cfg.ServerAddr()))

	pres := presenter.New(store, sender, provider)

	webDir := filepath.Join(s.cfg.DataDir, webDirName)
	if _, statErr := os.Stat(webDir); statErr != nil {
		webDir = ""
	}
	ui := gui.NewServer(pres, webDir)

	dispatcher := NewDispatcher(inbound, store, codec, sender, ui, s.cfg.TTL)

	sweeper := storage.NewSweeper(store, s.cfg.TTL)
	sweeper.Start()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ui.AddTerminationCallback(cancel)

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		dispatcher.Run()
		return nil
	})
	group.Go(func() error {
		return ui.Serve(groupCtx, s.cfg.GUIAddr())
	})
	if s.cfg.Metrics.Port > 0 {
		group.Go(func() error {
			return s.serveObservability(groupCtx, store, listener, sender)
		})
	}

	// Pull cached ciphergrams addressed to us from the network.
	if err := sender.RequestOfflineData(); err != nil {
		s.log.Warn("offline data request failed", logger.Error(err))
	}

	<-groupCtx.Done()

	// Teardown in dependency order.
	sender.Terminate()
	listener.Terminate()
	inbound <- transport.Inbound{} // dispatcher sentinel
	sweeper.Stop()

	err = group.Wait()
	if sweepErr := store.SweepExpired(s.cfg.TTL); sweepErr != nil {
		s.log.Warn("final sweep failed", logger.Error(sweepErr))
	}
	return err
}

// serveObservability exposes /metrics and /health on the local
// observability port.
func (s *Supervisor) serveObservability(ctx context.Context, store *storage.Store, listener *transport.Listener, sender *transport.Sender) error {
	checker := health.NewChecker()
	checker.Register("store", store.Ping)
	checker.Register("listener", func() error {
		if listener.Addr() == nil {
			return fmt.Errorf("listener not bound")
		}
		return nil
	})
	checker.Register("sender", sender.Alive)

	mux := metrics.NewMux()
	checker.Attach(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", s.cfg.Metrics.Port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
