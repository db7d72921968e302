// Package runs executes solver runs for the service: it resolves the
// instance, applies search defaults, bounds concurrency, persists the run and
// publishes its lifecycle events.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"fleetroute/internal/bench"
	"fleetroute/internal/instances"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/store"
)

// ErrBadRequest marks request errors the caller can fix.
var ErrBadRequest = errors.New("bad run request")

// Publisher receives run lifecycle events keyed by run id.
type Publisher interface {
	Publish(runID string, evt model.Event)
}

// DefaultProgressEvery is how many search steps pass between progress events.
const DefaultProgressEvery = 10

type Runner struct {
	store         store.Store
	pub           Publisher
	sem           *semaphore.Weighted
	defaults      opt.Params
	log           logrus.FieldLogger
	parallel      int
	ProgressEvery int
	// Reference, when set, enables the "reference" benchmark algorithm.
	Reference bench.Reference

	wg sync.WaitGroup
}

func NewRunner(st store.Store, pub Publisher, maxConcurrent int, defaults opt.Params, log logrus.FieldLogger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		store:         st,
		pub:           pub,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		defaults:      defaults,
		log:           log,
		parallel:      maxConcurrent,
		ProgressEvery: DefaultProgressEvery,
	}
}

// Defaults returns the search parameters applied to empty request fields.
func (r *Runner) Defaults() opt.Params { return r.defaults }

// Params overlays the request's search fields on the defaults.
func (r *Runner) Params(req model.RunRequest) (opt.Params, error) {
	p := r.defaults
	if req.Algorithm != "" {
		a, err := opt.ParseAlgorithm(req.Algorithm)
		if err != nil {
			return opt.Params{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		p.Algorithm = a
	}
	p.Seed = req.Seed
	if req.Iterations > 0 {
		p.Tabu.Iterations = req.Iterations
	}
	if req.TimeBudgetMs > 0 {
		budget := time.Duration(req.TimeBudgetMs) * time.Millisecond
		p.Tabu.TimeBudget = budget
		p.TwoOpt.TimeBudget = budget
	}
	if req.Tenure > 0 {
		p.Tabu.Tenure = req.Tenure
	}
	if req.StagnationLimit != nil {
		p.Tabu.StagnationLimit = *req.StagnationLimit
	}
	if req.Relocate != nil {
		p.Tabu.Relocate = *req.Relocate
	}
	if req.TwoOptPolicy != "" {
		pol, err := opt.ParseTwoOptPolicy(req.TwoOptPolicy)
		if err != nil {
			return opt.Params{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		p.TwoOpt.Policy = pol
	}
	if req.TwoOptIterations > 0 {
		p.TwoOpt.Iterations = req.TwoOptIterations
	}
	if err := p.Validate(); err != nil {
		return opt.Params{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return p, nil
}

// Instance resolves the request's inline instance or builtin name.
func Instance(req model.RunRequest) (instances.Named, error) {
	switch {
	case req.Instance != nil && req.Builtin != "":
		return instances.Named{}, fmt.Errorf("%w: give instance or builtin, not both", ErrBadRequest)
	case req.Instance != nil:
		in, err := opt.NewInstanceFromData(*req.Instance)
		if err != nil {
			return instances.Named{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		name := req.Name
		if name == "" {
			name = "inline"
		}
		return instances.Named{Name: name, Instance: in}, nil
	case req.Builtin != "":
		n, err := instances.Builtin{}.Load(req.Builtin)
		if err != nil {
			return instances.Named{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return n, nil
	}
	return instances.Named{}, fmt.Errorf("%w: instance or builtin is required", ErrBadRequest)
}

func (r *Runner) prepare(ctx context.Context, req model.RunRequest) (model.Run, instances.Named, opt.Params, error) {
	named, err := Instance(req)
	if err != nil {
		return model.Run{}, instances.Named{}, opt.Params{}, err
	}
	p, err := r.Params(req)
	if err != nil {
		return model.Run{}, instances.Named{}, opt.Params{}, err
	}
	run, err := r.store.CreateRun(ctx, model.Run{
		Name:      req.Name,
		Instance:  named.Name,
		Algorithm: string(p.Algorithm),
		Status:    model.RunQueued,
		Seed:      p.Seed,
	})
	if err != nil {
		return model.Run{}, instances.Named{}, opt.Params{}, fmt.Errorf("create run: %w", err)
	}
	return run, named, p, nil
}

// Run solves synchronously. A run that fails in the engine is stored as
// failed and returned together with the engine error.
func (r *Runner) Run(ctx context.Context, req model.RunRequest) (model.Run, error) {
	run, named, p, err := r.prepare(ctx, req)
	if err != nil {
		return model.Run{}, err
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return r.abandon(run, err), err
	}
	defer r.sem.Release(1)
	return r.execute(ctx, run, named, p)
}

// abandon marks a queued run failed when it never got a slot. ctx is
// usually cancelled by then, so the store write uses its own context.
func (r *Runner) abandon(run model.Run, cause error) model.Run {
	log := r.log.WithFields(logrus.Fields{"run_id": run.ID, "algorithm": run.Algorithm, "instance": run.Instance})
	done := time.Now().UTC()
	run.Status = model.RunFailed
	run.Error = fmt.Sprintf("not started: %v", cause)
	run.FinishedAt = &done
	metrics.SearchRuns.WithLabelValues(run.Algorithm, string(model.RunFailed)).Inc()
	log.WithError(cause).Warn("run abandoned before start")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.persist(ctx, log, run)
	r.publish(run.ID, model.Event{Type: model.EventRunFailed, Data: map[string]any{"runId": run.ID, "error": run.Error}})
	return run
}

// Submit stores a queued run and solves it in the background once a slot
// is free.
func (r *Runner) Submit(ctx context.Context, req model.RunRequest) (model.Run, error) {
	run, named, p, err := r.prepare(ctx, req)
	if err != nil {
		return model.Run{}, err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		bg := context.Background()
		if err := r.sem.Acquire(bg, 1); err != nil {
			r.abandon(run, err)
			return
		}
		defer r.sem.Release(1)
		_, _ = r.execute(bg, run, named, p)
	}()
	return run, nil
}

// Wait blocks until every submitted run has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) execute(ctx context.Context, run model.Run, named instances.Named, p opt.Params) (model.Run, error) {
	log := r.log.WithFields(logrus.Fields{"run_id": run.ID, "algorithm": run.Algorithm, "instance": run.Instance})
	run.Status = model.RunRunning
	if err := r.store.UpdateRun(ctx, run); err != nil {
		log.WithError(err).Warn("mark run running")
	}
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	every := r.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	p.Progress = func(pr opt.Progress) {
		if pr.Iteration%every != 0 {
			return
		}
		r.publish(run.ID, model.Event{Type: model.EventRunProgress, Data: map[string]any{
			"runId": run.ID, "iteration": pr.Iteration, "current": pr.Current, "best": pr.Best,
		}})
	}

	start := time.Now()
	s, m, solveErr := opt.Solve(named.Instance, p)
	if solveErr == nil {
		if err := named.Instance.Validate(s); err != nil {
			solveErr = err
		}
	}
	done := time.Now().UTC()
	run.FinishedAt = &done
	run.DurationMs = time.Since(start).Milliseconds()
	if m.Seed != 0 {
		run.Seed = m.Seed
	}

	if solveErr != nil {
		run.Status = model.RunFailed
		run.Error = solveErr.Error()
		metrics.SearchRuns.WithLabelValues(run.Algorithm, string(model.RunFailed)).Inc()
		log.WithError(solveErr).Warn("run failed")
		r.persist(ctx, log, run)
		r.publish(run.ID, model.Event{Type: model.EventRunFailed, Data: map[string]any{"runId": run.ID, "error": run.Error}})
		return run, solveErr
	}

	dist := s.Cost
	run.Status = model.RunSucceeded
	run.Distance = &dist
	run.Routes = RoutesOut(named.Instance, s)
	run.Metrics = &m
	opt.RecordMetrics(named.Name, m)
	observe(m)
	log.WithFields(logrus.Fields{"distance": dist, "dur_ms": run.DurationMs, "iterations": m.Iterations}).Info("run completed")
	r.persist(ctx, log, run)
	r.publish(run.ID, model.Event{Type: model.EventRunCompleted, Data: map[string]any{
		"runId": run.ID, "distance": dist, "durationMs": run.DurationMs,
	}})
	return run, nil
}

func (r *Runner) persist(ctx context.Context, log logrus.FieldLogger, run model.Run) {
	if err := r.store.UpdateRun(ctx, run); err != nil {
		log.WithError(err).Error("store run result")
	}
}

func (r *Runner) publish(runID string, evt model.Event) {
	if r.pub != nil {
		r.pub.Publish(runID, evt)
	}
}

func observe(m opt.Metrics) {
	algo := string(m.Algorithm)
	metrics.SearchRuns.WithLabelValues(algo, string(model.RunSucceeded)).Inc()
	observeDuration(algo, m.Duration)
	metrics.SearchIterations.WithLabelValues(algo).Observe(float64(m.Iterations))
	if m.InitialCost > 0 {
		metrics.SearchImprovement.WithLabelValues(algo).Observe(1 - m.BestCost/m.InitialCost)
	}
}

func observeDuration(algo string, d time.Duration) {
	metrics.SearchDuration.WithLabelValues(algo).Observe(d.Seconds())
}

// RoutesOut renders a solution with per-vehicle load and distance.
func RoutesOut(in *opt.Instance, s opt.Solution) []model.RouteOut {
	out := make([]model.RouteOut, len(s.Routes))
	for i, rt := range s.Routes {
		out[i] = model.RouteOut{
			Vehicle:  rt.Vehicle,
			Stops:    append([]int(nil), rt.Stops...),
			Load:     in.Load(rt),
			Capacity: in.Capacity(rt.Vehicle),
			Distance: in.RouteDistance(rt.Stops),
		}
	}
	return out
}
