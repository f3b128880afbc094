// Package streamware reflects controller methods returning lazy
// asynchronous sequences into WebSocket and chunked-HTTP endpoints: one
// registry shared read-only across connections, one controller factory
// invocation per connection per route, and a tracked connection set for
// graceful shutdown.
package streamware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"

	"github.com/nggorpc/streamware/registry"
)

// Server dispatches matched requests to the WebSocket or HTTP connection
// driver. Middleware wraps it as an http.Handler.
type Server struct {
	registry *registry.Registry
	options  ServerOptions
	logger   zerolog.Logger

	mu          sync.RWMutex
	connections map[*connection]struct{}
	shutdown    bool

	reaperCancel context.CancelFunc
}

// NewServer builds a Server around an already-built Registry and starts
// its background idle-connection reaper.
func NewServer(reg *registry.Registry, logger zerolog.Logger, opts ...ServerOption) *Server {
	reaperCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		registry:     reg,
		options:      NewServerOptions(opts...),
		logger:       logger,
		connections:  make(map[*connection]struct{}),
		reaperCancel: cancel,
	}
	go s.idleReaper(reaperCtx)
	return s
}

// connection is the per-connection bookkeeping shared by both drivers for
// idle reaping and graceful shutdown. HTTP connections register only for
// the duration of one request/response.
type connection struct {
	id       string
	cancel   context.CancelFunc
	isWS     bool
	touch    func() time.Time // last-activity getter, nil for HTTP
}

func newConnID() string { return shortuuid.New() }

func (s *Server) track(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[c] = struct{}{}
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, c)
}

func (s *Server) isShuttingDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shutdown
}

// Shutdown stops accepting new connections and cancels every tracked
// connection's context, then waits for them to drain or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("server shutdown initiated")
	s.reaperCancel()

	s.mu.Lock()
	s.shutdown = true
	conns := make([]*connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.cancel()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.mu.RLock()
		remaining := len(s.connections)
		s.mu.RUnlock()
		if remaining == 0 {
			s.logger.Info().Msg("all connections closed, shutdown complete")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown: %w, %d connections remaining", ctx.Err(), remaining)
		case <-ticker.C:
		}
	}
}

// idleReaper periodically cancels WebSocket connections that have had no
// send or receive activity for longer than options.IdleTimeout.
func (s *Server) idleReaper(ctx context.Context) {
	ticker := time.NewTicker(s.options.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapIdleConnections()
		}
	}
}

func (s *Server) reapIdleConnections() {
	s.mu.RLock()
	conns := make([]*connection, 0, len(s.connections))
	for c := range s.connections {
		if c.isWS {
			conns = append(conns, c)
		}
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, c := range conns {
		if now.Sub(c.touch()) > s.options.IdleTimeout {
			s.logger.Info().Str("conn_id", c.id).Msg("closing idle connection")
			c.cancel()
		}
	}
}
