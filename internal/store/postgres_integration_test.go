//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/bench"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
)

func TestPostgresRunsAndBenchmarks(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()
	require.NoError(t, p.Ping(ctx))
	require.NoError(t, p.Migrate(ctx))
	require.NoError(t, p.Migrate(ctx), "migrations must be re-runnable")

	run, err := p.CreateRun(ctx, model.Run{Instance: "six-two", Algorithm: "tabu", Status: model.RunQueued})
	require.NoError(t, err)

	got, err := p.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Distance)
	assert.Equal(t, model.RunQueued, got.Status)

	d := 46.0
	done := time.Now().UTC()
	run.Status = model.RunSucceeded
	run.Distance = &d
	run.Routes = []model.RouteOut{{Vehicle: 0, Stops: []int{0, 1, 0}, Load: 2, Capacity: 10, Distance: 4}}
	run.Metrics = &opt.Metrics{Algorithm: opt.AlgoTabu, Iterations: 10, BestCost: 46}
	run.FinishedAt = &done
	require.NoError(t, p.UpdateRun(ctx, run))

	got, err = p.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Distance)
	assert.Equal(t, 46.0, *got.Distance)
	assert.Equal(t, run.Routes, got.Routes)
	assert.Equal(t, 10, got.Metrics.Iterations)

	_, err = p.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	sweep := uuid.NewString()
	require.NoError(t, p.SaveBenchmark(ctx, []bench.Record{
		{ID: uuid.NewString(), SweepID: sweep, Instance: "six-two", Algorithm: "tabu", Distance: &d, Duration: time.Millisecond, CreatedAt: done},
		{ID: uuid.NewString(), SweepID: sweep, Instance: "six-two", Algorithm: "reference", CreatedAt: done},
	}))
	recs, err := p.ListBenchmark(ctx, sweep)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Nil(t, recs[0].Distance, "reference sorts first and has no distance")
	assert.Equal(t, time.Millisecond, recs[1].Duration)
}
