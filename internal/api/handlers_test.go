package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/config"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/webhooks"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	p := opt.DefaultParams()
	p.Tabu.Iterations = 50
	p.Tabu.TimeBudget = 0
	p.Tabu.StagnationLimit = 0
	cfg := config.Config{Port: "0", MaxConcurrentRuns: 2, RateBurst: 20, LogLevel: "info", Search: p}
	for _, m := range mutate {
		m(&cfg)
	}
	logger, _ := test.NewNullLogger()
	s, err := NewServer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthReady(t *testing.T) {
	h := newTestServer(t).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
}

func TestRunWaitSucceeds(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := do(t, h, http.MethodPost, "/v1/runs", `{"builtin":"six-two","algorithm":"tabu","seed":7,"wait":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	run := decode[model.Run](t, rr)
	assert.Equal(t, model.RunSucceeded, run.Status)
	assert.Equal(t, int64(7), run.Seed)
	require.NotNil(t, run.Distance)
	assert.LessOrEqual(t, *run.Distance, 46.0+1e-9)
	require.NotNil(t, run.Metrics)
	assert.Equal(t, opt.AlgoTabu, run.Metrics.Algorithm)

	rr = do(t, h, http.MethodGet, "/v1/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, run.ID, decode[model.Run](t, rr).ID)

	rr = do(t, h, http.MethodGet, "/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Items      []model.Run `json:"items"`
		NextCursor string      `json:"nextCursor"`
	}](t, rr)
	require.Len(t, list.Items, 1)
	assert.Empty(t, list.NextCursor)
}

func TestRunWaitInfeasible(t *testing.T) {
	h := newTestServer(t).Handler()
	body := `{"name":"tight","instance":{"distanceMatrix":[[0,1],[1,0]],"demands":[0,4],"vehicleCapacities":[3]},"algorithm":"nearest","wait":true}`

	rr := do(t, h, http.MethodPost, "/v1/runs", body)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	run := decode[model.Run](t, rr)
	assert.Equal(t, model.RunFailed, run.Status)
	assert.Nil(t, run.Distance)
	assert.NotEmpty(t, run.Error)
}

func TestRunAsync(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/v1/runs", `{"builtin":"square4","algorithm":"twoopt","seed":3}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	run := decode[model.Run](t, rr)
	assert.Equal(t, "/v1/runs/"+run.ID, rr.Header().Get("Location"))

	s.Runner.Wait()
	rr = do(t, h, http.MethodGet, "/v1/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.Run](t, rr)
	assert.Equal(t, model.RunSucceeded, got.Status)
	require.Len(t, got.Routes, 1)
	require.NotNil(t, got.Distance)
	assert.InDelta(t, 2+3*math.Sqrt2, *got.Distance, 1e-9)
}

func TestRunRequestErrors(t *testing.T) {
	h := newTestServer(t).Handler()
	cases := map[string]string{
		"bad json":       `{"builtin":`,
		"no instance":    `{"algorithm":"tabu"}`,
		"both":           `{"builtin":"square4","instance":{"distanceMatrix":[[0]],"vehicleCapacities":[1]}}`,
		"algorithm":      `{"builtin":"square4","algorithm":"annealing"}`,
		"policy":         `{"builtin":"square4","twoOptPolicy":"best"}`,
		"negative":       `{"builtin":"square4","iterations":-1}`,
		"unknown":        `{"builtin":"nowhere"}`,
		"bad instance":   `{"instance":{"distanceMatrix":[[0,1]],"vehicleCapacities":[1]},"wait":true}`,
		"depot out":      `{"instance":{"distanceMatrix":[[0,1],[1,0]],"vehicleCapacities":[1],"depot":5}}`,
		"stagnation < 0": `{"builtin":"square4","stagnationLimit":-2}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/runs", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, http.StatusBadRequest, decode[Problem](t, rr).Status)
		})
	}
}

func TestRunNotFound(t *testing.T) {
	h := newTestServer(t).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/missing/stream", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/missing/other", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/v1/runs", "").Code)
}

func TestBenchmarks(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := do(t, h, http.MethodPost, "/v1/benchmarks", `{"builtins":["square4"],"algorithms":["nearest","twoopt"],"runs":2,"seed":1}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[model.BenchmarkResponse](t, rr)
	require.Len(t, resp.Records, 4)
	require.Len(t, resp.Summary, 2)
	require.NotEmpty(t, resp.SweepID)
	for _, rec := range resp.Records {
		require.NotNil(t, rec.Distance)
		assert.Empty(t, rec.Error)
	}

	rr = do(t, h, http.MethodGet, "/v1/benchmarks/"+resp.SweepID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[model.BenchmarkResponse](t, rr).Records, 4)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/benchmarks/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/benchmarks", `{"algorithms":["nearest"]}`).Code)
	// no reference solver is configured for the service
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/benchmarks", `{"builtins":["square4"],"algorithms":["reference"]}`).Code)
}

func TestOptimizerConfigAndInstances(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := do(t, h, http.MethodGet, "/v1/optimizer/config", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cfg := decode[struct {
		Defaults   map[string]any `json:"defaults"`
		Algorithms []string       `json:"algorithms"`
	}](t, rr)
	assert.Equal(t, "tabu", cfg.Defaults["algorithm"])
	assert.EqualValues(t, 50, cfg.Defaults["iterations"])
	assert.Contains(t, cfg.Algorithms, "twoopt-random")

	rr = do(t, h, http.MethodGet, "/v1/instances", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"six-two"`)
}

func TestRunMetrics(t *testing.T) {
	h := newTestServer(t).Handler()
	body := `{"name":"metrics-probe","instance":{"distanceMatrix":[[0,2,3],[2,0,4],[3,4,0]],"demands":[0,1,1],"vehicleCapacities":[5]},"algorithm":"nearest","wait":true}`
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/runs", body).Code)

	rr := do(t, h, http.MethodGet, "/v1/admin/run-metrics?instance=metrics-probe", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[struct {
		Metrics map[string]opt.Metrics `json:"metrics"`
	}](t, rr)
	require.Contains(t, got.Metrics, "nearest")
	assert.InDelta(t, 9.0, got.Metrics["nearest"].BestCost, 1e-9)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/admin/run-metrics", "").Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.RateRPS = 0.001
		c.RateBurst = 1
	}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/instances", "").Code)
	rr := do(t, h, http.MethodGet, "/v1/instances", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	// probes are never limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestMetricsAndDebug(t *testing.T) {
	h := newTestServer(t).Handler()
	do(t, h, http.MethodGet, "/v1/instances", "")

	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
	assert.Contains(t, rr.Body.String(), `path="/v1/instances"`)

	rr = do(t, h, http.MethodGet, "/debug/info", "")
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode[map[string]any](t, rr)
	assert.Contains(t, info, "build")
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/v1/runs", routeLabel("/v1/runs"))
	assert.Equal(t, "/v1/runs/{id}", routeLabel("/v1/runs/0190-abc"))
	assert.Equal(t, "/v1/runs/{id}/stream", routeLabel("/v1/runs/0190-abc/stream"))
	assert.Equal(t, "/healthz", routeLabel("/healthz"))
	assert.Equal(t, "/v1/benchmarks", routeLabel("/v1/benchmarks"))
	assert.Equal(t, "/v1/benchmarks/{id}", routeLabel("/v1/benchmarks/0190-sweep"))
	assert.Equal(t, "other", routeLabel("/wp-admin/setup.php"))
	assert.Equal(t, "other", routeLabel("/v1/runs/"))
}

func TestRunStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/runs", "application/json",
		strings.NewReader(`{"builtin":"six-two","algorithm":"tabu","iterations":400}`))
	require.NoError(t, err)
	var run model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + run.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var types []string
	var last model.Event
	var snap model.Run
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		switch msg.Type {
		case "snapshot":
			require.NoError(t, json.Unmarshal(msg.Payload, &snap))
		case "next":
			require.NoError(t, json.Unmarshal(msg.Payload, &last))
		}
		if msg.Type == "complete" {
			break
		}
	}

	require.NotEmpty(t, types)
	assert.Equal(t, "snapshot", types[0])
	assert.Equal(t, run.ID, snap.ID)
	// the run either finished before the snapshot or streamed its completion
	if !snap.Status.Done() {
		assert.Equal(t, model.EventRunCompleted, last.Type)
	}
	s.Runner.Wait()
}

func TestRunWebhook(t *testing.T) {
	got := make(chan string, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(webhooks.EventHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	h := newTestServer(t, func(c *config.Config) {
		c.WebhookURL = hook.URL
		c.WebhookMaxAttempts = 1
	}).Handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/runs", `{"builtin":"square4","algorithm":"nearest","wait":true}`).Code)

	select {
	case typ := <-got:
		assert.Equal(t, model.EventRunCompleted, typ)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}
