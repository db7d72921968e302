package opt

import (
	"fmt"
	"math"
	"math/rand"
)

// NearestNeighbor fills vehicles in index order, each time appending the
// closest unvisited location whose demand still fits. Ties go to the lowest
// location index. It fails with ErrInfeasibleInstance when locations remain
// after the last vehicle.
func NearestNeighbor(in *Instance) (Solution, error) {
	if err := checkAggregate(in); err != nil {
		return Solution{}, err
	}
	n := len(in.dist)
	visited := make([]bool, n)
	visited[in.depot] = true
	remaining := n - 1

	s := Solution{Routes: make([]Route, len(in.capacity))}
	for v := range s.Routes {
		stops := []int{in.depot}
		cur, load := in.depot, 0
		for remaining > 0 {
			next, best := -1, math.Inf(1)
			for loc := 0; loc < n; loc++ {
				if visited[loc] || load+in.demand[loc] > in.capacity[v] {
					continue
				}
				if d := in.dist[cur][loc]; d < best {
					next, best = loc, d
				}
			}
			if next < 0 {
				break
			}
			visited[next] = true
			remaining--
			load += in.demand[next]
			stops = append(stops, next)
			cur = next
		}
		s.Routes[v] = Route{Vehicle: v, Stops: append(stops, in.depot)}
	}
	if remaining > 0 {
		return Solution{}, fmt.Errorf("%w: %d locations left unassigned after %d vehicles", ErrInfeasibleInstance, remaining, len(in.capacity))
	}
	s.Cost = in.TotalDistance(s)
	return s, nil
}

// RandomRoutes shuffles the customers and deals them round-robin to
// vehicles, passing over a vehicle that has no room for the next customer.
func RandomRoutes(in *Instance, rng *rand.Rand) (Solution, error) {
	if err := checkAggregate(in); err != nil {
		return Solution{}, err
	}
	customers := in.Customers()
	rng.Shuffle(len(customers), func(i, j int) { customers[i], customers[j] = customers[j], customers[i] })

	vehicles := len(in.capacity)
	loads := make([]int, vehicles)
	s := Solution{Routes: make([]Route, vehicles)}
	for v := range s.Routes {
		s.Routes[v] = Route{Vehicle: v, Stops: []int{in.depot}}
	}
	unplaced := 0
	for k, c := range customers {
		placed := false
		for t := 0; t < vehicles; t++ {
			v := (k + t) % vehicles
			if loads[v]+in.demand[c] <= in.capacity[v] {
				loads[v] += in.demand[c]
				s.Routes[v].Stops = append(s.Routes[v].Stops, c)
				placed = true
				break
			}
		}
		if !placed {
			unplaced++
		}
	}
	if unplaced > 0 {
		return Solution{}, fmt.Errorf("%w: %d locations left unassigned after %d vehicles", ErrInfeasibleInstance, unplaced, vehicles)
	}
	for v := range s.Routes {
		s.Routes[v].Stops = append(s.Routes[v].Stops, in.depot)
	}
	s.Cost = in.TotalDistance(s)
	return s, nil
}

// checkAggregate rejects instances whose total demand or a single demand
// cannot fit the fleet at all.
func checkAggregate(in *Instance) error {
	if demand, capacity := in.TotalDemand(), in.TotalCapacity(); demand > capacity {
		return fmt.Errorf("%w: total demand %d exceeds fleet capacity %d", ErrInfeasibleInstance, demand, capacity)
	}
	largest := 0
	for _, c := range in.capacity {
		largest = max(largest, c)
	}
	for loc, d := range in.demand {
		if d > largest {
			return fmt.Errorf("%w: demand %d at location %d exceeds every vehicle capacity", ErrInfeasibleInstance, d, loc)
		}
	}
	return nil
}
