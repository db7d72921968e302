package opt

import (
	"errors"
	"fmt"
)

// ErrInvalidSolution is returned by Validate for tour sets that break a routing invariant.
var ErrInvalidSolution = errors.New("invalid solution")

// Load sums demand over the non-depot stops of r.
func (in *Instance) Load(r Route) int {
	load := 0
	for _, s := range r.Customers() {
		load += in.demand[s]
	}
	return load
}

// CanAppend reports whether loc fits on r under the given capacity.
func (in *Instance) CanAppend(r Route, loc, capacity int) bool {
	if loc < 0 || loc >= len(in.demand) {
		return false
	}
	return in.Load(r)+in.demand[loc] <= capacity
}

// IsComplete reports whether every non-depot location is visited exactly once.
func (in *Instance) IsComplete(s Solution) bool {
	seen := make([]int, len(in.dist))
	for _, r := range s.Routes {
		for _, loc := range r.Customers() {
			if loc < 0 || loc >= len(seen) {
				return false
			}
			seen[loc]++
		}
	}
	for loc, n := range seen {
		if loc == in.depot {
			if n != 0 {
				return false
			}
			continue
		}
		if n != 1 {
			return false
		}
	}
	return true
}

// Validate checks vehicle count, stop indices, depot endpoints, coverage and
// capacity. It does not check Cost.
func (in *Instance) Validate(s Solution) error {
	if len(s.Routes) != len(in.capacity) {
		return fmt.Errorf("%w: %d routes for %d vehicles", ErrInvalidSolution, len(s.Routes), len(in.capacity))
	}
	n := len(in.dist)
	seen := make([]bool, n)
	for v, r := range s.Routes {
		if r.Vehicle != v {
			return fmt.Errorf("%w: route %d belongs to vehicle %d", ErrInvalidSolution, v, r.Vehicle)
		}
		if len(r.Stops) < 2 || r.Stops[0] != in.depot || r.Stops[len(r.Stops)-1] != in.depot {
			return fmt.Errorf("%w: route %d must start and end at depot %d", ErrInvalidSolution, v, in.depot)
		}
		for _, loc := range r.Customers() {
			switch {
			case loc < 0 || loc >= n:
				return fmt.Errorf("%w: route %d visits unknown location %d", ErrInvalidSolution, v, loc)
			case loc == in.depot:
				return fmt.Errorf("%w: route %d revisits the depot", ErrInvalidSolution, v)
			case seen[loc]:
				return fmt.Errorf("%w: location %d visited twice", ErrInvalidSolution, loc)
			}
			seen[loc] = true
		}
		if load := in.Load(r); load > in.capacity[v] {
			return fmt.Errorf("%w: vehicle %d load %d exceeds capacity %d", ErrInvalidSolution, v, load, in.capacity[v])
		}
	}
	for loc, ok := range seen {
		if loc != in.depot && !ok {
			return fmt.Errorf("%w: location %d not visited", ErrInvalidSolution, loc)
		}
	}
	return nil
}
