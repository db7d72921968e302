package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetroute/internal/metrics"
)

// Handler returns the service mux wrapped in rate limiting, access logging
// and request metrics.
func (s *Server) Handler() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /stream

	// Benchmarks
	mux.HandleFunc("/v1/benchmarks", s.BenchmarksHandler)
	mux.HandleFunc("/v1/benchmarks/", s.BenchmarkByIDHandler)

	// Instances and search defaults
	mux.HandleFunc("/v1/instances", s.InstancesHandler)
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)

	// Admin
	mux.HandleFunc("/v1/admin/run-metrics", s.RunMetricsHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/info", s.DebugJSON)

	return observe(s.Log, rateLimit(s.Config.RateRPS, s.Config.RateBurst, mux))
}
