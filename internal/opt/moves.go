package opt

import "fmt"

// TwoOptMove reverses Routes[Route].Stops[I..J].
type TwoOptMove struct {
	Route, I, J int
}

// RelocateMove moves the customer at Routes[From].Stops[Pos] in front of
// Routes[To].Stops[At].
type RelocateMove struct {
	From, Pos, To, At int
}

// InvalidMoveError is the panic value raised when the search generates a
// move that is out of bounds or breaks capacity. It signals a bug in move
// generation and is never returned as an ordinary error.
type InvalidMoveError struct {
	Move   string
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move %s: %s", e.Move, e.Reason)
}

func invalidMove(move any, format string, args ...any) {
	panic(&InvalidMoveError{Move: fmt.Sprintf("%+v", move), Reason: fmt.Sprintf(format, args...)})
}

// ApplyTwoOpt reverses the segment in place, updates s.Cost and returns the delta.
func (in *Instance) ApplyTwoOpt(s *Solution, m TwoOptMove) float64 {
	if m.Route < 0 || m.Route >= len(s.Routes) {
		invalidMove(m, "route %d of %d", m.Route, len(s.Routes))
	}
	stops := s.Routes[m.Route].Stops
	if m.I < 1 || m.I >= m.J || m.J > len(stops)-2 {
		invalidMove(m, "need 1 <= i < j <= %d", len(stops)-2)
	}
	delta := in.twoOptDelta(stops, m.I, m.J)
	for i, j := m.I, m.J; i < j; i, j = i+1, j-1 {
		stops[i], stops[j] = stops[j], stops[i]
	}
	s.Cost += delta
	return delta
}

// ApplyRelocate moves one customer between routes, updates s.Cost and returns
// the delta. The receiving vehicle must have room for the customer.
func (in *Instance) ApplyRelocate(s *Solution, m RelocateMove) float64 {
	if m.From < 0 || m.From >= len(s.Routes) || m.To < 0 || m.To >= len(s.Routes) || m.From == m.To {
		invalidMove(m, "routes %d -> %d of %d", m.From, m.To, len(s.Routes))
	}
	from, to := s.Routes[m.From].Stops, s.Routes[m.To].Stops
	if m.Pos < 1 || m.Pos > len(from)-2 {
		invalidMove(m, "position %d outside donor customers", m.Pos)
	}
	if m.At < 1 || m.At > len(to)-1 {
		invalidMove(m, "insertion point %d outside receiver", m.At)
	}
	x := from[m.Pos]
	if load := in.Load(s.Routes[m.To]) + in.demand[x]; load > in.capacity[m.To] {
		invalidMove(m, "vehicle %d load %d exceeds capacity %d", m.To, load, in.capacity[m.To])
	}
	delta := in.relocateDelta(from, m.Pos, to, m.At)

	donor := make([]int, 0, len(from)-1)
	donor = append(donor, from[:m.Pos]...)
	donor = append(donor, from[m.Pos+1:]...)
	receiver := make([]int, 0, len(to)+1)
	receiver = append(receiver, to[:m.At]...)
	receiver = append(receiver, x)
	receiver = append(receiver, to[m.At:]...)

	s.Routes[m.From].Stops = donor
	s.Routes[m.To].Stops = receiver
	s.Cost += delta
	return delta
}
