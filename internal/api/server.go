// Package api implements the HTTP service that runs solves in the
// background and streams their progress.
package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pdptw/internal/config"
	"pdptw/internal/metrics"
	"pdptw/internal/store"
	"pdptw/internal/webhooks"
)

type Server struct {
	Store   store.Store
	Pub     *webhooks.Publisher
	Broker  EventBroker
	Runs    *RunManager
	Limiter *rate.Limiter
	Config  config.Service
}

// NewServer wires a Server from service settings. Without DATABASE_URL the
// in-memory store is used, without REDIS_URL the in-process broker.
func NewServer(cfg config.Service) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := sp.MigrateDir(cfg.MigrationsDir); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-process broker")
		} else {
			broker = rb
		}
	}
	return NewServerWith(cfg, s, broker), nil
}

// NewServerWith builds a Server around an existing store and broker.
func NewServerWith(cfg config.Service, s store.Store, broker EventBroker) *Server {
	metrics.RegisterDefault()
	pub := webhooks.NewPublisher(s)
	return &Server{
		Store:   s,
		Pub:     pub,
		Broker:  broker,
		Runs:    NewRunManager(s, broker, pub, cfg.MaxConcurrentRuns),
		Limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		Config:  cfg,
	}
}

// Routes returns the service handler with logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Runs
	mux.Handle("POST /v1/solve", s.rateLimit(http.HandlerFunc(s.SolveHandler)))
	mux.HandleFunc("GET /v1/runs", s.ListRunsHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.GetRunHandler)
	mux.HandleFunc("DELETE /v1/runs/{id}", s.CancelRunHandler)
	mux.HandleFunc("GET /v1/runs/{id}/snapshots", s.SnapshotsHandler)
	mux.HandleFunc("GET /v1/runs/{id}/metrics", s.RunMetricsHandler)
	mux.HandleFunc("GET /v1/runs/{id}/webhooks", s.WebhookDeliveriesHandler)

	// Progress streams
	mux.HandleFunc("GET /v1/runs/{id}/events/stream", s.EventsStreamHandler)
	mux.HandleFunc("GET /v1/runs/{id}/ws", s.WSHandler)

	mux.HandleFunc("GET /v1/algorithms", s.AlgorithmsHandler)

	// Health and ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /debug", s.DebugJSON)

	return logMiddleware(instrument(mux))
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts)
}
