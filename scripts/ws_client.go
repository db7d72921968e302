// Package main submits a demo run and prints its event stream.
//
//	go run ./scripts/ws_client.go -addr localhost:8080 -instance six-two
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

type streamMsg struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type progress struct {
	Type string `json:"type"`
	Data struct {
		Iteration int      `json:"iteration"`
		Current   *float64 `json:"current"`
		Best      *float64 `json:"best"`
	} `json:"data"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "API host:port")
	instance := flag.String("instance", "six-two", "builtin instance name")
	algorithm := flag.String("algorithm", "tabu", "search algorithm")
	iterations := flag.Int("iterations", 2000, "iteration budget")
	wait := flag.Duration("timeout", 30*time.Second, "how long to wait for completion")
	flag.Parse()

	runID, err := submit(*addr, *instance, *algorithm, *iterations)
	if err != nil {
		log.Fatalf("submit run: %v", err)
	}
	log.Printf("run %s submitted", runID)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/v1/runs/" + runID + "/stream"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer func() { _ = conn.Close() }()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			var m streamMsg
			if err := conn.ReadJSON(&m); err != nil {
				log.Printf("stream closed: %v", err)
				return
			}
			switch m.Type {
			case "next":
				var p progress
				if json.Unmarshal(m.Payload, &p) == nil && p.Type == "run.progress" && p.Data.Best != nil {
					log.Printf("iteration %d best %.3f", p.Data.Iteration, *p.Data.Best)
					continue
				}
				log.Printf("event: %s", m.Payload)
			case "snapshot":
				log.Printf("snapshot: %s", m.Payload)
			case "complete":
				log.Print("run finished")
				return
			}
		}
	}()

	select {
	case <-finished:
	case <-time.After(*wait):
		log.Print("timed out waiting for the run to finish")
	}
}

func submit(addr, instance, algorithm string, iterations int) (string, error) {
	body, err := json.Marshal(map[string]any{
		"builtin":    instance,
		"algorithm":  algorithm,
		"iterations": iterations,
	})
	if err != nil {
		return "", err
	}
	resp, err := http.Post("http://"+addr+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		return "", &url.Error{Op: "POST", URL: resp.Request.URL.String(), Err: errStatus(resp.Status)}
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return "", err
	}
	return run.ID, nil
}

type errStatus string

func (e errStatus) Error() string { return "unexpected status " + string(e) }
