package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleetroute/internal/model"
)

// Run streams speak a small subset of the graphql-transport-ws vocabulary:
// the server sends "snapshot" (the stored run), then "next" per event and
// "complete" once the run is final. Clients may send "ping" and "complete".

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamPingEvery    = 20 * time.Second
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RunStreamHandler handles GET /v1/runs/{id}/stream
func (s *Server) RunStreamHandler(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// unknown runs get a plain 404 before the upgrade
	if _, err := s.Store.GetRun(r.Context(), runID); err != nil {
		writeError(w, r, "Get run failed", err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	log := s.Log.WithField("run_id", runID)

	ch := s.Broker.Subscribe(runID)
	defer s.Broker.Unsubscribe(runID, ch)

	var mu sync.Mutex
	write := func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(v)
	}
	finish := func() {
		_ = write(wsMessage{Type: "complete", ID: runID})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(streamWriteTimeout))
	}

	// read the run after subscribing so a completion in between is not lost
	run, err := s.Store.GetRun(r.Context(), runID)
	if err != nil {
		log.WithError(err).Warn("stream snapshot")
		return
	}
	snap, _ := json.Marshal(run)
	if err := write(wsMessage{Type: "snapshot", ID: runID, Payload: snap}); err != nil {
		return
	}
	if run.Status.Done() {
		finish()
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(1 << 20)
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		})
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "ping":
				_ = write(wsMessage{Type: "pong"})
			case "complete":
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				finish()
				return
			}
			payload, _ := json.Marshal(evt)
			if err := write(wsMessage{Type: "next", ID: runID, Payload: payload}); err != nil {
				return
			}
			if evt.Type == model.EventRunCompleted || evt.Type == model.EventRunFailed {
				finish()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
