package opt

import "time"

// DefaultTenure is the number of iterations a reversed move stays forbidden.
const DefaultTenure = 10

type TabuParams struct {
	Iterations int           `json:"iterations" yaml:"iterations"`
	TimeBudget time.Duration `json:"timeBudget" yaml:"timeBudget"`
	Tenure     int           `json:"tenure" yaml:"tenure"`
	// StagnationLimit stops the search after that many consecutive steps
	// without an admissible move. 0 disables it.
	StagnationLimit int  `json:"stagnationLimit" yaml:"stagnationLimit"`
	Relocate        bool `json:"relocate" yaml:"relocate"`
	// OnStep is called after every step. It must not retain the solution.
	OnStep func(Progress) `json:"-" yaml:"-"`
}

// Progress reports search state after one step.
type Progress struct {
	Iteration int     `json:"iteration"`
	Current   float64 `json:"current"`
	Best      float64 `json:"best"`
}

type TabuStats struct {
	Iterations    int
	Improvements  int
	AcceptedWorse int
	Aspirations   int
	TabuRejected  int
	Stopped       StopReason
}

type moveKind uint8

const (
	moveTwoOpt moveKind = iota + 1
	moveRelocate
)

type edge [2]int

func undirected(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// signature identifies a move attribute. 2-opt moves use the unordered pair
// of edges; relocations use (customer, vehicle).
type signature struct {
	kind     moveKind
	e1, e2   edge
	customer int
	vehicle  int
}

func edgePair(x, y edge) signature {
	if y[0] < x[0] || (y[0] == x[0] && y[1] < x[1]) {
		x, y = y, x
	}
	return signature{kind: moveTwoOpt, e1: x, e2: y}
}

type candidate struct {
	kind     moveKind
	twoOpt   TwoOptMove
	relocate RelocateMove
	delta    float64
	sig      signature
	inverse  signature
}

type tabuSearch struct {
	in        *Instance
	p         TabuParams
	current   Solution
	best      Solution
	loads     []int
	tabu      map[signature]int
	iteration int
	stats     TabuStats
}

// TabuSearch improves initial with 2-opt and (optionally) relocation moves
// under a short-term tabu memory with aspiration. initial is not modified.
// The returned solution is the best seen and never costs more than initial.
func TabuSearch(in *Instance, initial Solution, p TabuParams) (Solution, TabuStats) {
	if p.Tenure <= 0 {
		p.Tenure = DefaultTenure
	}
	t := &tabuSearch{
		in:      in,
		p:       p,
		current: initial.Clone(),
		best:    initial.Clone(),
		loads:   make([]int, len(initial.Routes)),
		tabu:    map[signature]int{},
	}
	for v, r := range t.current.Routes {
		t.loads[v] = in.Load(r)
	}
	dl := newDeadline(p.TimeBudget)
	stagnant := 0
	for {
		if p.Iterations > 0 && t.iteration >= p.Iterations {
			t.stats.Stopped = StopIterations
			break
		}
		if dl.passed() {
			t.stats.Stopped = StopTime
			break
		}
		c, found, structural := t.choose()
		if !structural {
			t.stats.Stopped = StopExhausted
			break
		}
		if found {
			t.apply(c)
			stagnant = 0
		} else {
			stagnant++
		}
		t.iteration++
		t.prune()
		if p.OnStep != nil {
			p.OnStep(Progress{Iteration: t.iteration, Current: t.current.Cost, Best: t.best.Cost})
		}
		if p.StagnationLimit > 0 && stagnant >= p.StagnationLimit {
			t.stats.Stopped = StopStagnation
			break
		}
	}
	t.stats.Iterations = t.iteration
	return t.best, t.stats
}

// choose enumerates the neighborhood and returns the admissible move with
// the lowest resulting total. structural is false when no move exists at all.
func (t *tabuSearch) choose() (best candidate, found, structural bool) {
	consider := func(c candidate) {
		structural = true
		if exp, ok := t.tabu[c.sig]; ok && exp > t.iteration {
			if !(t.current.Cost+c.delta < t.best.Cost-eps) {
				t.stats.TabuRejected++
				return
			}
		}
		if !found || c.delta < best.delta {
			best, found = c, true
		}
	}

	in := t.in
	for r, route := range t.current.Routes {
		stops := route.Stops
		n := len(stops)
		for i := 1; i < n-2; i++ {
			for j := i + 1; j < n-1; j++ {
				a, b, c, d := stops[i-1], stops[i], stops[j], stops[j+1]
				added := edgePair(undirected(a, c), undirected(b, d))
				removed := edgePair(undirected(a, b), undirected(c, d))
				if added == removed && in.symmetric {
					// orientation flip of the whole route: same tour
					continue
				}
				consider(candidate{
					kind:    moveTwoOpt,
					twoOpt:  TwoOptMove{Route: r, I: i, J: j},
					delta:   in.twoOptDelta(stops, i, j),
					sig:     added,
					inverse: removed,
				})
			}
		}
	}
	if !t.p.Relocate {
		return best, found, structural
	}
	for from, donor := range t.current.Routes {
		for p := 1; p < len(donor.Stops)-1; p++ {
			x := donor.Stops[p]
			for to, receiver := range t.current.Routes {
				if to == from || t.loads[to]+in.demand[x] > in.capacity[to] {
					continue
				}
				for q := 1; q < len(receiver.Stops); q++ {
					consider(candidate{
						kind:     moveRelocate,
						relocate: RelocateMove{From: from, Pos: p, To: to, At: q},
						delta:    in.relocateDelta(donor.Stops, p, receiver.Stops, q),
						sig:      signature{kind: moveRelocate, customer: x, vehicle: to},
						inverse:  signature{kind: moveRelocate, customer: x, vehicle: from},
					})
				}
			}
		}
	}
	return best, found, structural
}

func (t *tabuSearch) apply(c candidate) {
	if exp, ok := t.tabu[c.sig]; ok && exp > t.iteration {
		t.stats.Aspirations++
	}
	switch c.kind {
	case moveTwoOpt:
		t.in.ApplyTwoOpt(&t.current, c.twoOpt)
	case moveRelocate:
		x := t.current.Routes[c.relocate.From].Stops[c.relocate.Pos]
		t.in.ApplyRelocate(&t.current, c.relocate)
		t.loads[c.relocate.From] -= t.in.demand[x]
		t.loads[c.relocate.To] += t.in.demand[x]
	}
	t.tabu[c.inverse] = t.iteration + t.p.Tenure
	if t.current.Cost < t.best.Cost-eps {
		t.best = t.current.Clone()
		t.stats.Improvements++
	} else if c.delta >= 0 {
		t.stats.AcceptedWorse++
	}
}

func (t *tabuSearch) prune() {
	for sig, exp := range t.tabu {
		if exp <= t.iteration {
			delete(t.tabu, sig)
		}
	}
}
