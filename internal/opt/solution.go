package opt

// Route is the stop sequence of one vehicle. Stops starts and ends at the depot.
type Route struct {
	Vehicle int   `json:"vehicle"`
	Stops   []int `json:"stops"`
}

// Customers returns the non-depot stops of the route, sharing the backing array.
func (r Route) Customers() []int {
	if len(r.Stops) < 2 {
		return nil
	}
	return r.Stops[1 : len(r.Stops)-1]
}

// Solution is a tour set: one route per vehicle, indexed by vehicle id, and
// the total distance maintained by move application.
type Solution struct {
	Routes []Route `json:"routes"`
	Cost   float64 `json:"cost"`
}

// Clone returns a deep copy so search state is never shared between runs.
func (s Solution) Clone() Solution {
	out := Solution{Routes: make([]Route, len(s.Routes)), Cost: s.Cost}
	for i, r := range s.Routes {
		out.Routes[i] = Route{Vehicle: r.Vehicle, Stops: append([]int(nil), r.Stops...)}
	}
	return out
}

// StopLists returns the plain stop sequences, one per vehicle.
func (s Solution) StopLists() [][]int {
	out := make([][]int, len(s.Routes))
	for i, r := range s.Routes {
		out[i] = append([]int(nil), r.Stops...)
	}
	return out
}

// SolutionFromStops builds a Solution from per-vehicle stop sequences and
// prices it. The result is not validated.
func (in *Instance) SolutionFromStops(stops [][]int) Solution {
	s := Solution{Routes: make([]Route, len(stops))}
	for v, st := range stops {
		s.Routes[v] = Route{Vehicle: v, Stops: append([]int(nil), st...)}
	}
	s.Cost = in.TotalDistance(s)
	return s
}
