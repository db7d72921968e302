package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetroute/internal/bench"
	"fleetroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu     sync.Mutex
	runs   map[string]model.Run // id -> run
	order  []string             // run ids in creation order
	sweeps map[string][]bench.Record
}

func NewMemory() *Memory {
	return &Memory{
		runs:   map[string]model.Run{},
		sweeps: map[string][]bench.Record{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = newID()
	}
	if _, ok := m.runs[run.ID]; ok {
		return model.Run{}, fmt.Errorf("run %s already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return run, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns pages through runs in creation order; cursor is the last id seen.
func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		start = len(m.order)
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Run{}
	for i := start; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, m.runs[m.order[i]])
	}
	next := ""
	if len(out) == limit && start+limit < len(m.order) {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) SaveBenchmark(ctx context.Context, records []bench.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.sweeps[r.SweepID] = append(m.sweeps[r.SweepID], r)
	}
	return nil
}

func (m *Memory) ListBenchmark(ctx context.Context, sweepID string) ([]bench.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.sweeps[sweepID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]bench.Record(nil), recs...), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
