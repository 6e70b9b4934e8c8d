package api

import (
	"net/http"
	"runtime"
	"time"

	"pdptw/internal/buildinfo"
)

// DebugJSON reports build information and the effective service settings.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config
	broker := "memory"
	if _, ok := s.Broker.(*RedisBroker); ok {
		broker = "redis"
	}
	info := map[string]any{
		"build":      buildinfo.Info(),
		"time":       time.Now().UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
		"broker":     broker,
		"config": map[string]any{
			"PORT":                 cfg.Port,
			"RATE_RPS":             cfg.RateRPS,
			"RATE_BURST":           cfg.RateBurst,
			"WEBHOOK_MAX_ATTEMPTS": cfg.WebhookMaxAttempts,
			"MAX_CONCURRENT_RUNS":  cfg.MaxConcurrentRuns,
			"LOG_LEVEL":            cfg.LogLevel,
			"HAS_DATABASE_URL":     cfg.DatabaseURL != "",
			"HAS_REDIS_URL":        cfg.RedisURL != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
