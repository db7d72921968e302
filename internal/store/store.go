package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fleetroute/internal/bench"
	"fleetroute/internal/model"
)

// Store is the persistence interface used by the runner and the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	UpdateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error)

	// Benchmarks
	SaveBenchmark(ctx context.Context, records []bench.Record) error
	ListBenchmark(ctx context.Context, sweepID string) ([]bench.Record, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// newID returns a time-ordered id so id order is creation order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
