package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
)

type hits struct {
	mu     sync.Mutex
	bodies [][]byte
	sigs   []string
	types  []string
}

func (h *hits) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bodies)
}

func endpoint(t *testing.T, failFirst int) (*httptest.Server, *hits) {
	t.Helper()
	h := &hits{}
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		defer h.mu.Unlock()
		calls++
		if calls <= failFirst {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		h.bodies = append(h.bodies, body)
		h.sigs = append(h.sigs, r.Header.Get(SignatureHeader))
		h.types = append(h.types, r.Header.Get(EventHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, h
}

func TestNotifierDeliversFinalEventsSigned(t *testing.T) {
	srv, h := endpoint(t, 0)
	logger, _ := test.NewNullLogger()
	n := NewNotifier(srv.URL, "s3cret", 3, logger)
	n.Start()

	n.Publish("run-1", model.Event{Type: model.EventRunProgress, Data: map[string]any{"iteration": 10}})
	n.Publish("run-1", model.Event{Type: model.EventRunCompleted, Data: map[string]any{"runId": "run-1", "distance": 46.0}})

	require.Eventually(t, func() bool { return h.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, n.Close())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.bodies, 1, "progress events are not delivered")
	assert.Equal(t, model.EventRunCompleted, h.types[0])
	assert.True(t, Verify("s3cret", h.bodies[0], h.sigs[0]))
	assert.False(t, Verify("other", h.bodies[0], h.sigs[0]))

	var payload struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(h.bodies[0], &payload))
	assert.Equal(t, model.EventRunCompleted, payload.Type)
	assert.Equal(t, "run-1", payload.Data["runId"])
}

func TestNotifierRetriesThenSucceeds(t *testing.T) {
	srv, h := endpoint(t, 2)
	logger, _ := test.NewNullLogger()
	n := NewNotifier(srv.URL, "", 3, logger)
	n.backoff = func(int) time.Duration { return time.Millisecond }
	n.Start()
	defer func() { _ = n.Close() }()

	n.Publish("run-2", model.Event{Type: model.EventRunFailed, Data: map[string]any{"runId": "run-2"}})
	require.Eventually(t, func() bool { return h.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	h.mu.Lock()
	assert.Empty(t, h.sigs[0], "no secret means no signature")
	h.mu.Unlock()
}

func TestNotifierGivesUp(t *testing.T) {
	srv, h := endpoint(t, 100)
	logger, hook := test.NewNullLogger()
	n := NewNotifier(srv.URL, "", 2, logger)
	n.backoff = func(int) time.Duration { return time.Millisecond }
	n.Start()

	n.Publish("run-3", model.Event{Type: model.EventRunFailed})
	require.Eventually(t, func() bool {
		e := hook.LastEntry()
		return e != nil && e.Message == "webhook delivery failed"
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, n.Close())
	assert.Zero(t, h.count())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(0))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, 5*time.Minute, nextBackoff(50))
}
