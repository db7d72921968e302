package opt

import (
	"fmt"
	"math/rand"
	"time"
)

// TwoOptPolicy selects how 2-opt explores the neighborhood.
type TwoOptPolicy string

const (
	// TwoOptSampled tries random (route, i, j) triples for a fixed budget.
	TwoOptSampled TwoOptPolicy = "sampled"
	// TwoOptFull scans every (route, i, j) in order, accepting the first
	// improvement, until a pass finds nothing.
	TwoOptFull TwoOptPolicy = "full"
)

// ParseTwoOptPolicy maps a name to a policy.
func ParseTwoOptPolicy(s string) (TwoOptPolicy, error) {
	switch p := TwoOptPolicy(s); p {
	case TwoOptSampled, TwoOptFull:
		return p, nil
	case "":
		return TwoOptSampled, nil
	}
	return "", fmt.Errorf("%w: unknown 2-opt policy %q", ErrInvalidConfig, s)
}

// DefaultTwoOptSamples matches the sample count of the benchmark driver.
const DefaultTwoOptSamples = 1000

type TwoOptParams struct {
	Policy TwoOptPolicy `json:"policy" yaml:"policy"`
	// Iterations is the sample count for TwoOptSampled and the pass cap for
	// TwoOptFull (0 runs passes until no move improves).
	Iterations int           `json:"iterations" yaml:"iterations"`
	TimeBudget time.Duration `json:"timeBudget" yaml:"timeBudget"`
}

type TwoOptStats struct {
	Iterations int
	Accepted   int
	Delta      float64
	Converged  bool
	Stopped    StopReason
}

// deadline is a wall-clock budget checked between search steps.
type deadline struct {
	at time.Time
}

func newDeadline(budget time.Duration) deadline {
	if budget <= 0 {
		return deadline{}
	}
	return deadline{at: time.Now().Add(budget)}
}

func (d deadline) passed() bool {
	return !d.at.IsZero() && time.Now().After(d.at)
}

// ImproveTwoOpt applies capacity-neutral segment reversals to s in place,
// accepting a move only when it strictly shortens its route.
func ImproveTwoOpt(in *Instance, s *Solution, p TwoOptParams, rng *rand.Rand) TwoOptStats {
	dl := newDeadline(p.TimeBudget)
	if p.Policy == TwoOptFull {
		return twoOptFull(in, s, p.Iterations, dl)
	}
	iterations := p.Iterations
	if iterations <= 0 {
		iterations = DefaultTwoOptSamples
	}
	return twoOptSampled(in, s, iterations, dl, rng)
}

func twoOptSampled(in *Instance, s *Solution, iterations int, dl deadline, rng *rand.Rand) TwoOptStats {
	var st TwoOptStats
	var eligible []int
	for r, route := range s.Routes {
		// reversal needs at least two customers
		if len(route.Stops) >= 4 {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		st.Converged = true
		st.Stopped = StopExhausted
		return st
	}
	st.Stopped = StopIterations
	for ; st.Iterations < iterations; st.Iterations++ {
		if dl.passed() {
			st.Stopped = StopTime
			break
		}
		r := eligible[rng.Intn(len(eligible))]
		stops := s.Routes[r].Stops
		span := len(stops) - 2
		i, j := 1+rng.Intn(span), 1+rng.Intn(span)
		if i == j {
			continue
		}
		if j < i {
			i, j = j, i
		}
		if in.twoOptDelta(stops, i, j) < -eps {
			st.Delta += in.ApplyTwoOpt(s, TwoOptMove{Route: r, I: i, J: j})
			st.Accepted++
		}
	}
	return st
}

func twoOptFull(in *Instance, s *Solution, passes int, dl deadline) TwoOptStats {
	var st TwoOptStats
	st.Stopped = StopIterations
	for passes <= 0 || st.Iterations < passes {
		improved := false
		for r := range s.Routes {
			n := len(s.Routes[r].Stops)
			for i := 1; i < n-2; i++ {
				for j := i + 1; j < n-1; j++ {
					if dl.passed() {
						st.Stopped = StopTime
						return st
					}
					if in.twoOptDelta(s.Routes[r].Stops, i, j) < -eps {
						st.Delta += in.ApplyTwoOpt(s, TwoOptMove{Route: r, I: i, J: j})
						st.Accepted++
						improved = true
					}
				}
			}
		}
		st.Iterations++
		if !improved {
			st.Converged = true
			st.Stopped = StopConverged
			break
		}
	}
	return st
}
