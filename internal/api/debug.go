package api

import (
	"net/http"
	"time"

	"fleetroute/internal/buildinfo"
)

// DebugJSON reports build information and the non-secret parts of the
// running configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                c.Port,
			"RATE_RPS":            c.RateRPS,
			"RATE_BURST":          c.RateBurst,
			"LOG_LEVEL":           c.LogLevel,
			"MAX_CONCURRENT_RUNS": c.MaxConcurrentRuns,
			"SEARCH_CONFIG":       c.SearchConfig,
			"HAS_DATABASE_URL":    c.DatabaseURL != "",
			"HAS_REDIS_URL":       c.RedisURL != "",
			"HAS_WEBHOOK_URL":     c.WebhookURL != "",
			"DB_MIGRATE":          c.Migrate,
		},
	}
	writeJSON(w, http.StatusOK, info)
}
