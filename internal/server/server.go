// Package server exposes period resolution, weight normalization and
// contribution aggregation to the dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/logger"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 4 << 20
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Addr string

	// Client is optional. Without it the leaderboard route answers 503.
	Client contract.BackendClient

	// Now anchors period listings that do not pass an explicit time.
	Now func() time.Time

	ShutdownTimeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	log     *logger.Logger
	cfg     Config
	metrics *metrics
	router  http.Handler
}

// New constructs a configured HTTP router.
func New(log *logger.Logger, cfg Config) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Addr == "" {
		cfg.Addr = contract.DefaultListenAddr
	}
	s := &Server{log: log, cfg: cfg, metrics: newMetrics()}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Get("/periods", s.handlePeriods)
	r.Get("/periods/range", s.handlePeriodRange)
	r.Post("/weights/normalize", s.handleNormalizeWeights)
	r.Post("/weights/clamp", s.handleClampWeight)
	r.Post("/contributions/aggregate", s.handleAggregate)
	r.Get("/leaderboard", s.handleLeaderboard)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}
