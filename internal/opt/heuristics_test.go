package opt

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asymmetric(t *testing.T) *Instance {
	t.Helper()
	dist := [][]float64{
		{0, 3, 9, 4, 7},
		{1, 0, 6, 2, 8},
		{5, 2, 0, 7, 3},
		{8, 4, 1, 0, 6},
		{2, 9, 5, 3, 0},
	}
	in, err := NewInstance(dist, nil, []int{Unlimited}, 0)
	require.NoError(t, err)
	return in
}

func TestApplyTwoOptDeltaMatchesResum(t *testing.T) {
	for name, in := range map[string]*Instance{"symmetric": Square4(), "asymmetric": asymmetric(t)} {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 3; i++ {
				for j := i + 1; j <= 4; j++ {
					s := in.SolutionFromStops([][]int{{0, 1, 2, 3, 4, 0}})
					before := s.Cost
					delta := in.ApplyTwoOpt(&s, TwoOptMove{Route: 0, I: i, J: j})
					after := in.TotalDistance(s)
					assert.InDelta(t, after-before, delta, 1e-9, "i=%d j=%d", i, j)
					assert.InDelta(t, after, s.Cost, 1e-9)
				}
			}
		})
	}
}

func TestApplyRelocateDeltaMatchesResum(t *testing.T) {
	in := SixTwo()
	s := in.SolutionFromStops([][]int{{0, 1, 2, 4, 0}, {0, 3, 5, 6, 0}})
	before := s.Cost

	delta := in.ApplyRelocate(&s, RelocateMove{From: 1, Pos: 3, To: 0, At: 4})

	assert.Equal(t, []int{0, 1, 2, 4, 6, 0}, s.Routes[0].Stops)
	assert.Equal(t, []int{0, 3, 5, 0}, s.Routes[1].Stops)
	assert.InDelta(t, in.TotalDistance(s)-before, delta, 1e-9)
	require.NoError(t, in.Validate(s))
}

func catchInvalidMove(t *testing.T, f func()) (got *InvalidMoveError) {
	t.Helper()
	defer func() {
		r := recover()
		e, ok := r.(*InvalidMoveError)
		require.True(t, ok, "panic value %#v", r)
		got = e
	}()
	f()
	return nil
}

func TestInvalidMovesPanic(t *testing.T) {
	in := SixTwo()
	s, err := NearestNeighbor(in)
	require.NoError(t, err)

	e := catchInvalidMove(t, func() { in.ApplyTwoOpt(&s, TwoOptMove{Route: 0, I: 0, J: 2}) })
	assert.Contains(t, e.Error(), "invalid move")

	catchInvalidMove(t, func() { in.ApplyTwoOpt(&s, TwoOptMove{Route: 0, I: 2, J: 5}) })
	catchInvalidMove(t, func() { in.ApplyTwoOpt(&s, TwoOptMove{Route: 3, I: 1, J: 2}) })
	catchInvalidMove(t, func() { in.ApplyRelocate(&s, RelocateMove{From: 0, Pos: 1, To: 0, At: 1}) })
	catchInvalidMove(t, func() { in.ApplyRelocate(&s, RelocateMove{From: 0, Pos: 9, To: 1, At: 1}) })

	// vehicle 0 is full, so nothing from vehicle 1 fits
	e = catchInvalidMove(t, func() { in.ApplyRelocate(&s, RelocateMove{From: 1, Pos: 1, To: 0, At: 1}) })
	assert.Contains(t, e.Reason, "exceeds capacity")
}

func TestTwoOptFullReachesSquareOptimum(t *testing.T) {
	in := Square4()
	s := in.SolutionFromStops([][]int{{0, 1, 4, 2, 3, 0}})
	require.InDelta(t, 6+math.Sqrt2, s.Cost, 1e-9)

	st := ImproveTwoOpt(in, &s, TwoOptParams{Policy: TwoOptFull}, nil)

	assert.True(t, st.Converged)
	assert.Equal(t, StopConverged, st.Stopped)
	assert.Positive(t, st.Accepted)
	assert.InDelta(t, 2+3*math.Sqrt2, s.Cost, 1e-9)
	assert.InDelta(t, in.TotalDistance(s), s.Cost, 1e-9)
	require.NoError(t, in.Validate(s))
}

func TestTwoOptSampledNeverWorsens(t *testing.T) {
	in := asymmetric(t)
	for seed := int64(1); seed <= 20; seed++ {
		s := in.SolutionFromStops([][]int{{0, 4, 3, 2, 1, 0}})
		before := s.Cost
		rng, _ := NewRand(seed)

		st := ImproveTwoOpt(in, &s, TwoOptParams{Policy: TwoOptSampled, Iterations: 200}, rng)

		assert.Equal(t, 200, st.Iterations)
		assert.LessOrEqual(t, s.Cost, before)
		if st.Accepted > 0 {
			assert.Less(t, s.Cost, before)
			assert.Less(t, st.Delta, 0.0)
		}
		assert.InDelta(t, in.TotalDistance(s), s.Cost, 1e-9)
		require.NoError(t, in.Validate(s))
	}
}

func TestTwoOptKeepsLoads(t *testing.T) {
	in := SixTwo()
	rng, _ := NewRand(3)
	s := in.SolutionFromStops([][]int{{0, 6, 2, 4, 1, 0}, {0, 5, 3, 0}})
	loads := []int{in.Load(s.Routes[0]), in.Load(s.Routes[1])}

	ImproveTwoOpt(in, &s, TwoOptParams{Policy: TwoOptSampled, Iterations: 500}, rng)

	assert.Equal(t, loads, []int{in.Load(s.Routes[0]), in.Load(s.Routes[1])})
	assert.ElementsMatch(t, []int{6, 2, 4, 1}, s.Routes[0].Customers())
}

func TestTwoOptSampledWithoutEligibleRoutes(t *testing.T) {
	in := SixTwo()
	s := in.SolutionFromStops([][]int{{0, 1, 0}, {0, 0}})

	st := ImproveTwoOpt(in, &s, TwoOptParams{Policy: TwoOptSampled}, nil)

	assert.Equal(t, StopExhausted, st.Stopped)
	assert.Zero(t, st.Iterations)
}

func TestTwoOptHonoursTimeBudget(t *testing.T) {
	in := asymmetric(t)
	s := in.SolutionFromStops([][]int{{0, 4, 3, 2, 1, 0}})
	rng, _ := NewRand(1)

	st := ImproveTwoOpt(in, &s, TwoOptParams{Policy: TwoOptSampled, Iterations: math.MaxInt32, TimeBudget: time.Millisecond}, rng)

	assert.Equal(t, StopTime, st.Stopped)
	assert.Less(t, st.Iterations, math.MaxInt32)
}

func TestParseTwoOptPolicy(t *testing.T) {
	p, err := ParseTwoOptPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TwoOptSampled, p)

	p, err = ParseTwoOptPolicy("full")
	require.NoError(t, err)
	assert.Equal(t, TwoOptFull, p)

	_, err = ParseTwoOptPolicy("greedy")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
