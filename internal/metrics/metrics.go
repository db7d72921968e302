package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SearchRuns counts finished search runs by algorithm and outcome
	SearchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_runs_total", Help: "Search runs by algorithm and status."},
		[]string{"algorithm", "status"},
	)
	// SearchDuration tracks wall-clock search time in seconds
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "search_duration_seconds", Help: "Search run duration in seconds.", Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}},
		[]string{"algorithm"},
	)
	// SearchIterations tracks search steps per run
	SearchIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "search_iterations", Help: "Search steps per run.", Buckets: prometheus.ExponentialBuckets(10, 4, 7)},
		[]string{"algorithm"},
	)
	// SearchImprovement is the relative gain of the final tour set over the construction
	SearchImprovement = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "search_improvement_ratio", Help: "1 - best/initial distance per run.", Buckets: prometheus.LinearBuckets(0, 0.05, 11)},
		[]string{"algorithm"},
	)
	// WebhookDeliveries counts run notifications by outcome
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Run webhook deliveries by outcome."},
		[]string{"outcome"},
	)
	// RunsInFlight is the number of runs currently executing
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_runs_in_flight", Help: "Search runs currently executing."},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SearchRuns)
		Registry.MustRegister(SearchDuration)
		Registry.MustRegister(SearchIterations)
		Registry.MustRegister(SearchImprovement)
		Registry.MustRegister(RunsInFlight)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
