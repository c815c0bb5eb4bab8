package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/chainfeed/service/config"
	"github.com/brojonat/chainfeed/service/metrics"
	"github.com/brojonat/chainfeed/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the optional backends of a Server.
type Options struct {
	// Store enables the stored history and sync registry routes.
	Store Store
	// Scheduler enables the sync routes.
	Scheduler temporal.Scheduler
}

// Server represents the HTTP server for the transaction feed.
type Server struct {
	addr      string
	cfg       *config.Config
	svc       Service
	store     Store
	scheduler temporal.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, svc Service, opts Options, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		cfg:       cfg,
		svc:       svc,
		store:     opts.Store,
		scheduler: opts.Scheduler,
		metrics:   m,
		logger:    logger,
	}
}

// routes builds the request multiplexer wrapped in CORS.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	handle("GET /api/v1/currencies", "list_currencies", handleListCurrencies(s.svc, s.logger))
	handle("GET /api/v1/balances/{symbol}/{address}", "get_balance", handleGetBalance(s.svc, s.logger))
	handle("GET /api/v1/transactions/{symbol}/{address}", "get_transactions", handleGetTransactions(s.svc, s.logger))

	if s.store != nil {
		handle("GET /api/v1/history/{symbol}/{address}", "list_history", handleListStoredTransactions(s.store, s.logger))
		handle("GET /api/v1/syncs", "list_syncs", handleListSyncs(s.store, s.logger))
	} else {
		s.logger.Warn("store not configured, history endpoints disabled")
	}

	if s.scheduler != nil {
		handle("POST /api/v1/syncs", "upsert_sync", handleUpsertSync(s.svc, s.store, s.scheduler, s.cfg.SyncInterval, s.cfg.MinSyncInterval, s.logger))
		handle("DELETE /api/v1/syncs/{symbol}/{network}/{address}", "delete_sync", handleDeleteSync(s.store, s.scheduler, s.logger))
	} else {
		s.logger.Warn("scheduler not configured, sync endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.routes(),
		ReadTimeout: 15 * time.Second,
		// Transaction requests may walk many provider pages.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
