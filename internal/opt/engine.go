package opt

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for search parameters that cannot be run.
var ErrInvalidConfig = errors.New("invalid search config")

// Algorithm names a construction + improvement pipeline.
type Algorithm string

const (
	AlgoNearest      Algorithm = "nearest"
	AlgoRandom       Algorithm = "random"
	AlgoTwoOpt       Algorithm = "twoopt"
	AlgoTwoOptRandom Algorithm = "twoopt-random"
	AlgoTabu         Algorithm = "tabu"
)

// Algorithms lists the engine pipelines in display order.
var Algorithms = []Algorithm{AlgoNearest, AlgoRandom, AlgoTwoOpt, AlgoTwoOptRandom, AlgoTabu}

func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, s)
}

// StopReason records why a search ended.
type StopReason string

const (
	StopNone       StopReason = ""
	StopIterations StopReason = "iterations"
	StopTime       StopReason = "time"
	StopStagnation StopReason = "stagnation"
	StopExhausted  StopReason = "exhausted"
	StopConverged  StopReason = "converged"
)

type Params struct {
	Algorithm Algorithm    `json:"algorithm" yaml:"algorithm"`
	Seed      int64        `json:"seed" yaml:"seed"`
	TwoOpt    TwoOptParams `json:"twoOpt" yaml:"twoOpt"`
	Tabu      TabuParams   `json:"tabu" yaml:"tabu"`
	// SnapshotEvery controls how often tabu progress is kept in Metrics.
	SnapshotEvery int `json:"snapshotEvery" yaml:"snapshotEvery"`
	// Progress, when set, receives every tabu step.
	Progress func(Progress) `json:"-" yaml:"-"`
}

// DefaultParams returns the search defaults used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Algorithm: AlgoTabu,
		TwoOpt:    TwoOptParams{Policy: TwoOptSampled, Iterations: DefaultTwoOptSamples},
		Tabu: TabuParams{
			Iterations:      500,
			TimeBudget:      5 * time.Second,
			Tenure:          DefaultTenure,
			StagnationLimit: 100,
			Relocate:        true,
		},
		SnapshotEvery: 50,
	}
}

func (p Params) Validate() error {
	if _, err := ParseAlgorithm(string(p.Algorithm)); err != nil {
		return err
	}
	if _, err := ParseTwoOptPolicy(string(p.TwoOpt.Policy)); err != nil {
		return err
	}
	switch {
	case p.TwoOpt.Iterations < 0:
		return fmt.Errorf("%w: 2-opt iterations must be >= 0", ErrInvalidConfig)
	case p.TwoOpt.TimeBudget < 0:
		return fmt.Errorf("%w: 2-opt time budget must be >= 0", ErrInvalidConfig)
	case p.Tabu.Iterations < 0:
		return fmt.Errorf("%w: tabu iterations must be >= 0", ErrInvalidConfig)
	case p.Tabu.TimeBudget < 0:
		return fmt.Errorf("%w: tabu time budget must be >= 0", ErrInvalidConfig)
	case p.Tabu.Tenure < 0:
		return fmt.Errorf("%w: tenure must be >= 0", ErrInvalidConfig)
	case p.Tabu.StagnationLimit < 0:
		return fmt.Errorf("%w: stagnation limit must be >= 0", ErrInvalidConfig)
	case p.Algorithm == AlgoTabu && p.Tabu.Iterations == 0 && p.Tabu.TimeBudget == 0:
		return fmt.Errorf("%w: tabu search needs an iteration or time budget", ErrInvalidConfig)
	}
	return nil
}

type CostSnapshot struct {
	Iteration int     `json:"iteration"`
	Current   float64 `json:"current"`
	Best      float64 `json:"best"`
}

// Metrics summarizes one engine run.
type Metrics struct {
	Algorithm     Algorithm      `json:"algorithm"`
	Seed          int64          `json:"seed"`
	Iterations    int            `json:"iterations"`
	Improvements  int            `json:"improvements"`
	AcceptedWorse int            `json:"acceptedWorse"`
	Aspirations   int            `json:"aspirations"`
	InitialCost   float64        `json:"initialCost"`
	BestCost      float64        `json:"bestCost"`
	Stopped       StopReason     `json:"stopped,omitempty"`
	Duration      time.Duration  `json:"duration"`
	Snapshots     []CostSnapshot `json:"snapshots,omitempty"`
}

// Solve runs the pipeline named by p.Algorithm on in. The only error paths
// are invalid parameters and ErrInfeasibleInstance; budget exhaustion still
// returns the best solution found.
func Solve(in *Instance, p Params) (Solution, Metrics, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, Metrics{}, err
	}
	start := time.Now()
	rng, seed := NewRand(p.Seed)
	m := Metrics{Algorithm: p.Algorithm, Seed: seed}

	var (
		s   Solution
		err error
	)
	switch p.Algorithm {
	case AlgoRandom, AlgoTwoOptRandom:
		s, err = RandomRoutes(in, rng)
	default:
		s, err = NearestNeighbor(in)
	}
	if err != nil {
		return Solution{}, Metrics{}, err
	}
	m.InitialCost = s.Cost

	switch p.Algorithm {
	case AlgoTwoOpt, AlgoTwoOptRandom:
		st := ImproveTwoOpt(in, &s, p.TwoOpt, rng)
		m.Iterations = st.Iterations
		m.Improvements = st.Accepted
		m.Stopped = st.Stopped
	case AlgoTabu:
		snapshotEvery := p.SnapshotEvery
		if snapshotEvery <= 0 {
			snapshotEvery = 50
		}
		tp := p.Tabu
		tp.OnStep = func(pr Progress) {
			if pr.Iteration%snapshotEvery == 0 {
				m.Snapshots = append(m.Snapshots, CostSnapshot(pr))
			}
			if p.Progress != nil {
				p.Progress(pr)
			}
		}
		var st TabuStats
		s, st = TabuSearch(in, s, tp)
		m.Iterations = st.Iterations
		m.Improvements = st.Improvements
		m.AcceptedWorse = st.AcceptedWorse
		m.Aspirations = st.Aspirations
		m.Stopped = st.Stopped
	}

	// re-price to drop accumulated delta rounding
	s.Cost = in.TotalDistance(s)
	m.BestCost = s.Cost
	m.Duration = time.Since(start)
	return s, m, nil
}
