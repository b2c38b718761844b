package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/oscjson"
)

const (
	// DefaultHost keeps the responder on loopback unless configured otherwise
	DefaultHost = "127.0.0.1"

	readHeaderTimeout = 5 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host     string // Bind address (default 127.0.0.1)
	Port     uint16 // Port chosen by the caller, usually allocated up front
	HostInfo oscjson.HostInfo
	Root     oscjson.Node     // Namespace served at / (default oscjson.DefaultRoot)
	Metrics  *metrics.Metrics // Optional request counters
	Logger   *zap.Logger      // Optional; nil selects the package logger
}

// Server is the OSCQuery HTTP responder
type Server struct {
	config   *Config
	hostInfo []byte
	log      *zap.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New creates a new Server instance. Nothing is bound until Start.
func New(config *Config) (*Server, error) {
	cfg := *config
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Root == nil {
		cfg.Root = oscjson.DefaultRoot()
	}
	if cfg.Root.Path() != "/" {
		return nil, fmt.Errorf("namespace root must be at /, got %q", cfg.Root.Path())
	}

	hostInfo, err := json.Marshal(cfg.HostInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode host info: %w", err)
	}

	return &Server{
		config:   &cfg,
		hostInfo: hostInfo,
		log:      logging.OrGlobal(cfg.Logger, "http"),
	}, nil
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(int(s.config.Port)))
}

// Start binds the listener and serves in the background. Calling Start on a
// running server does nothing.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return nil
	}

	addr := s.Addr()
	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.log.Info("OSCQuery HTTP server listening",
		zap.String("addr", listener.Addr().String()),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("OSCQuery HTTP server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	s.log.Debug("Shutting down OSCQuery HTTP server")

	err := httpServer.Shutdown(ctx)
	if err != nil {
		// deadline hit, drop whatever is left
		_ = httpServer.Close()
	}
	s.wg.Wait()

	return err
}
