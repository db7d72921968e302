// Package bench runs independent solver runs over instances and algorithms
// in parallel and collects comparable records.
package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleetroute/internal/instances"
	"fleetroute/internal/opt"
)

// AlgoReference names the external solver in a sweep.
const AlgoReference = "reference"

// Record is the outcome of one run. Distance is nil when no tour set exists:
// a failed run or a reference without a solution.
type Record struct {
	ID        string        `json:"id"`
	SweepID   string        `json:"sweepId"`
	Instance  string        `json:"instance"`
	Algorithm string        `json:"algorithm"`
	Run       int           `json:"run"`
	Seed      int64         `json:"seed"`
	Distance  *float64      `json:"distance"`
	Duration  time.Duration `json:"durationNs"`
	Routes    [][]int       `json:"routes,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

type Config struct {
	Instances  []instances.Named
	Algorithms []string
	Runs       int
	Parallel   int
	Seed       int64
	Params     opt.Params
	Reference  Reference
	Log        logrus.FieldLogger
}

func (c Config) validate() error {
	if len(c.Instances) == 0 {
		return errors.New("bench: no instances")
	}
	if len(c.Algorithms) == 0 {
		return errors.New("bench: no algorithms")
	}
	for _, a := range c.Algorithms {
		if a == AlgoReference {
			if c.Reference == nil {
				return errors.New("bench: reference algorithm requested without a reference solver")
			}
			continue
		}
		if _, err := opt.ParseAlgorithm(a); err != nil {
			return err
		}
	}
	return nil
}

type job struct {
	instance instances.Named
	algo     string
	run      int
}

// Sweep runs every (instance, algorithm, run) combination with at most
// cfg.Parallel runs at once. Each run owns its solution and generator; the
// instances are shared read-only. Run failures are kept on their record and
// do not stop the sweep; only cancellation of ctx does.
func Sweep(ctx context.Context, cfg Config) ([]Record, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Runs <= 0 {
		cfg.Runs = 1
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var jobs []job
	for _, in := range cfg.Instances {
		for _, a := range cfg.Algorithms {
			for r := 0; r < cfg.Runs; r++ {
				jobs = append(jobs, job{instance: in, algo: a, run: r})
			}
		}
	}

	sweepID := uuid.NewString()
	records := make([]Record, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := runOne(gctx, cfg, j)
			rec.SweepID = sweepID
			records[i] = rec
			entry := log.WithFields(logrus.Fields{
				"instance":  rec.Instance,
				"algorithm": rec.Algorithm,
				"run":       rec.Run,
				"dur_ms":    rec.Duration.Milliseconds(),
			})
			if rec.Error != "" {
				entry.WithField("error", rec.Error).Warn("bench run failed")
			} else if rec.Distance != nil {
				entry.WithField("distance", *rec.Distance).Debug("bench run done")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bench sweep: %w", err)
	}
	return records, nil
}

func runOne(ctx context.Context, cfg Config, j job) Record {
	rec := Record{
		ID:        uuid.NewString(),
		Instance:  j.instance.Name,
		Algorithm: j.algo,
		Run:       j.run,
		Seed:      opt.DeriveSeed(cfg.Seed, fmt.Sprintf("%s/%s/%d", j.instance.Name, j.algo, j.run)),
		CreatedAt: time.Now().UTC(),
	}
	start := time.Now()
	var (
		s   opt.Solution
		err error
	)
	if j.algo == AlgoReference {
		s, err = cfg.Reference.Solve(ctx, j.instance.Instance)
	} else {
		p := cfg.Params
		p.Algorithm = opt.Algorithm(j.algo)
		p.Seed = rec.Seed
		p.Progress = nil
		s, _, err = opt.Solve(j.instance.Instance, p)
	}
	rec.Duration = time.Since(start)
	switch {
	case errors.Is(err, ErrNoSolution):
		// absent, not an error
	case err != nil:
		rec.Error = err.Error()
	default:
		d := s.Cost
		rec.Distance = &d
		rec.Routes = s.StopLists()
	}
	return rec
}
