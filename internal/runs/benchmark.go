package runs

import (
	"context"
	"fmt"
	"time"

	"fleetroute/internal/bench"
	"fleetroute/internal/instances"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
)

// MaxBenchmarkRuns caps runs per (instance, algorithm) in one request.
const MaxBenchmarkRuns = 50

// Benchmark sweeps the requested instances and algorithms, holding one
// runner slot per parallel worker, and stores the records.
func (r *Runner) Benchmark(ctx context.Context, req model.BenchmarkRequest) (model.BenchmarkResponse, error) {
	cfg, err := r.benchConfig(req)
	if err != nil {
		return model.BenchmarkResponse{}, err
	}
	if err := r.sem.Acquire(ctx, int64(cfg.Parallel)); err != nil {
		return model.BenchmarkResponse{}, err
	}
	records, err := bench.Sweep(ctx, cfg)
	r.sem.Release(int64(cfg.Parallel))
	if err != nil {
		return model.BenchmarkResponse{}, err
	}
	for _, rec := range records {
		if rec.Error == "" && rec.Distance != nil {
			observeBench(rec)
		}
	}
	if err := r.store.SaveBenchmark(ctx, records); err != nil {
		return model.BenchmarkResponse{}, fmt.Errorf("store benchmark: %w", err)
	}
	resp := model.BenchmarkResponse{Records: records, Summary: bench.Summarize(records)}
	if len(records) > 0 {
		resp.SweepID = records[0].SweepID
	}
	return resp, nil
}

func (r *Runner) benchConfig(req model.BenchmarkRequest) (bench.Config, error) {
	var named []instances.Named
	for _, b := range req.Builtins {
		n, err := instances.Builtin{}.Load(b)
		if err != nil {
			return bench.Config{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		named = append(named, n)
	}
	for i, ni := range req.Instances {
		in, err := opt.NewInstanceFromData(ni.InstanceData)
		if err != nil {
			return bench.Config{}, fmt.Errorf("%w: instances[%d]: %v", ErrBadRequest, i, err)
		}
		name := ni.Name
		if name == "" {
			name = fmt.Sprintf("inline-%d", i)
		}
		named = append(named, instances.Named{Name: name, Instance: in})
	}
	if len(named) == 0 {
		return bench.Config{}, fmt.Errorf("%w: at least one builtin or instance is required", ErrBadRequest)
	}
	if req.Runs < 0 || req.Runs > MaxBenchmarkRuns {
		return bench.Config{}, fmt.Errorf("%w: runs must be in [0,%d]", ErrBadRequest, MaxBenchmarkRuns)
	}
	algos := req.Algorithms
	if len(algos) == 0 {
		for _, a := range opt.Algorithms {
			algos = append(algos, string(a))
		}
	}

	p := r.defaults
	if req.Iterations > 0 {
		p.Tabu.Iterations = req.Iterations
	}
	if req.TimeBudgetMs > 0 {
		p.Tabu.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
		p.TwoOpt.TimeBudget = p.Tabu.TimeBudget
	}
	cfg := bench.Config{
		Instances:  named,
		Algorithms: algos,
		Runs:       req.Runs,
		Parallel:   r.parallel,
		Seed:       req.Seed,
		Params:     p,
		Reference:  r.Reference,
		Log:        r.log,
	}
	// validate up front so config mistakes are request errors
	for _, a := range algos {
		if a == bench.AlgoReference {
			if r.Reference == nil {
				return bench.Config{}, fmt.Errorf("%w: no reference solver configured", ErrBadRequest)
			}
			continue
		}
		if _, err := opt.ParseAlgorithm(a); err != nil {
			return bench.Config{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	return cfg, nil
}

func observeBench(rec bench.Record) {
	// reference durations are not search time
	if rec.Algorithm == bench.AlgoReference {
		return
	}
	observeDuration(rec.Algorithm, rec.Duration)
}
