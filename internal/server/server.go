// Package server exposes the service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewHandler builds the routed, logged handler. An empty adminToken
// disables the admin endpoints.
func NewHandler(api API, adminToken string, logger *zap.SugaredLogger) http.Handler {
	h := &handlers{api: api, adminToken: adminToken, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", h.home)
	mux.HandleFunc("GET /api/health", h.health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/etf-data", h.etfData)
	mux.HandleFunc("GET /api/etf-history", h.etfHistory)
	mux.HandleFunc("GET /api/test", h.probe)
	mux.HandleFunc("GET /api/burn", h.burn)
	mux.HandleFunc("GET /api/richlist", h.richList)
	mux.HandleFunc("GET /api/social/{kind}", h.social)
	mux.HandleFunc("POST /api/admin/cache/reset", h.resetCache)

	return RequestLogger(logger, Recoverer(logger, mux))
}

// Server is the HTTP front end.
type Server struct {
	srv    *http.Server
	logger *zap.SugaredLogger
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler, logger *zap.SugaredLogger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      3 * time.Minute,
			IdleTimeout:       2 * time.Minute,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down, allowing in-flight
// requests up to grace to finish.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
