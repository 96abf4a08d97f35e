// Package status serves a small read-only HTTP API describing the updater:
// liveness, scheduler state, run history and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/history"
)

// Scheduler is the scheduler state read by the handlers.
type Scheduler interface {
	State() cron.State
	Next() time.Time
}

// History is the run history read by the handlers.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
	LastSuccess(ctx context.Context) (history.Record, bool, error)
}

// Deps are the components the server reports on. History and Metrics are
// optional.
type Deps struct {
	Scheduler Scheduler
	History   History
	Metrics   http.Handler
	Logger    *slog.Logger
}

// Server is the status HTTP server.
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	startedAt time.Time
	server    *http.Server
}

// New creates a server. It does not listen until Start.
func New(cfg Config, deps Deps) *Server {
	cfg.defaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		config:    cfg,
		deps:      deps,
		logger:    deps.Logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		if s.config.BearerToken != "" {
			r.Use(authMiddleware(s.config.BearerToken, s.logger))
		}
		r.Get("/status", s.handleStatus())
		r.Get("/history", s.handleHistory())
	})

	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.startedAt = time.Now()
	s.server = &http.Server{
		Addr:         s.config.Bind,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.config.Bind)
	if err != nil {
		return fmt.Errorf("status: listen on %s: %w", s.config.Bind, err)
	}

	go func() {
		s.logger.Info("status: listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status: serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("status: shutting down")
	return s.server.Shutdown(shutdownCtx)
}
