// Copyright 2025 The CortexKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the engine over HTTP: query processing with
// optional SSE streaming, agent discovery, sanitized configuration and
// its JSON schema, Prometheus metrics, and the full memory API.
//
// The server owns its engine. On configuration reload it builds a fresh
// engine from the new config and swaps it in under the running listener;
// address changes require a restart.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/engine"
)

// Options configures a Server.
type Options struct {
	// Config is required.
	Config *config.Config

	// Loader, when set, enables hot reload: the server watches the
	// loader's source and rebuilds the engine on change.
	Loader *config.Loader

	// Host and Port override the configured bind address when set.
	Host string
	Port int

	// Engine, when set, is used instead of building one from Config.
	Engine *engine.Engine

	// EngineOptions are passed through when the server builds its own
	// engine, and again on every reload.
	EngineOptions []engine.Option

	Logger *slog.Logger
}

// Server runs the HTTP API on top of an engine.
type Server struct {
	cfg    *config.Config
	loader *config.Loader
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	engine *engine.Engine

	httpServer *http.Server
	listener   net.Listener

	stopChan   chan struct{}
	reloadChan chan *config.Config
	doneChan   chan struct{}
	watchStop  context.CancelFunc
}

// New creates a Server. The engine is not built until Start.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if opts.Host != "" {
		opts.Config.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		opts.Config.Server.Port = opts.Port
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:        opts.Config,
		loader:     opts.Loader,
		opts:       opts,
		logger:     logger,
		engine:     opts.Engine,
		stopChan:   make(chan struct{}),
		reloadChan: make(chan *config.Config, 1),
		doneChan:   make(chan struct{}),
	}, nil
}

// Start builds the engine, binds the listener, and launches the
// lifecycle goroutine. It returns once the server is accepting
// connections.
func (s *Server) Start(ctx context.Context) error {
	if s.engine == nil {
		eng, err := engine.New(s.cfg, s.opts.EngineOptions...)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		s.mu.Lock()
		s.engine = eng
		s.mu.Unlock()
	}

	addr := s.cfg.Server.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()

	if s.loader != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.watchStop = cancel
		go s.watchConfig(watchCtx)
	}

	s.logger.Info("Server listening", "address", ln.Addr().String())

	go s.runLifecycle()
	return nil
}

// Addr returns the bound listen address. Useful when Port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Engine returns the currently active engine.
func (s *Server) Engine() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Config returns the currently active configuration.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Wait blocks until the server has fully shut down.
func (s *Server) Wait() {
	<-s.doneChan
}

// Stop requests shutdown and waits for it to finish or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	select {
	case <-s.doneChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watchConfig feeds reloaded configurations into the lifecycle loop.
func (s *Server) watchConfig(ctx context.Context) {
	s.loader.SetOnChange(func(cfg *config.Config) {
		select {
		case s.reloadChan <- cfg:
		default:
		}
	})

	if err := s.loader.Watch(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Config watch stopped", "error", err)
	}
}

// runLifecycle owns shutdown and reload. It exits after cleanup.
func (s *Server) runLifecycle() {
	defer close(s.doneChan)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			s.logger.Info("Signal received, shutting down")
			s.cleanup()
			return

		case <-s.stopChan:
			s.cleanup()
			return

		case cfg := <-s.reloadChan:
			s.applyReload(cfg)
		}
	}
}

// applyReload swaps in an engine built from the new configuration. The
// old engine is closed only after the swap, so in-flight requests keep
// a working engine. Bind address changes are logged but not applied.
func (s *Server) applyReload(cfg *config.Config) {
	if cfg.Server.Address() != s.cfg.Server.Address() {
		s.logger.Warn("Bind address changed in config, restart required to apply",
			"current", s.cfg.Server.Address(), "new", cfg.Server.Address())
	}

	eng, err := engine.New(cfg, s.opts.EngineOptions...)
	if err != nil {
		s.logger.Error("Reload failed, keeping current engine", "error", err)
		return
	}

	s.mu.Lock()
	old := s.engine
	s.engine = eng
	s.cfg = cfg
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("Failed to close replaced engine", "error", err)
		}
	}
	s.logger.Info("Configuration reloaded")
}

// cleanup drains the HTTP server, then releases the engine.
func (s *Server) cleanup() {
	if s.watchStop != nil {
		s.watchStop()
	}

	timeout := s.Config().Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP shutdown incomplete", "error", err)
		}
	}

	s.mu.Lock()
	eng := s.engine
	s.engine = nil
	s.mu.Unlock()

	if eng != nil {
		if err := eng.Close(); err != nil {
			s.logger.Warn("Failed to close engine", "error", err)
		}
	}
}
