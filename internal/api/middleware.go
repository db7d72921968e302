package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"fleetroute/internal/metrics"
)

// statusWriter captures the final status code and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets the run stream upgrade through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// observe logs every request and records it in the HTTP metrics.
func observe(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		status := strconv.Itoa(sw.status)
		path := routeLabel(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())

		log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.RequestURI(),
			"status": sw.status,
			"bytes":  sw.bytes,
			"dur_ms": dur.Milliseconds(),
			"remote": r.RemoteAddr,
		}).Info("request")
	})
}

// fixedRoutes are the paths without ids that are labelled as requested.
var fixedRoutes = map[string]bool{
	"/v1/runs":              true,
	"/v1/benchmarks":        true,
	"/v1/instances":         true,
	"/v1/optimizer/config":  true,
	"/v1/admin/run-metrics": true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/debug/info":           true,
}

// routeLabel maps a request path to a bounded set of metric labels: ids are
// folded into placeholders and unknown paths become "other".
func routeLabel(path string) string {
	if fixedRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/v1/runs/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/stream") {
			return "/v1/runs/{id}/stream"
		}
		return "/v1/runs/{id}"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/benchmarks/"); ok && rest != "" {
		return "/v1/benchmarks/{id}"
	}
	return "other"
}

// rateLimit applies one shared token bucket to all requests. Probes and
// scrapes are exempt. A non-positive rps disables limiting.
func rateLimit(rps float64, burst int, next http.Handler) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if !lim.Allow() {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
