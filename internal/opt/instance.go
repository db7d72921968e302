package opt

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInstance is returned when instance data violates the model invariants.
	ErrInvalidInstance = errors.New("invalid instance")
	// ErrInfeasibleInstance is returned when the fleet cannot serve every location.
	ErrInfeasibleInstance = errors.New("infeasible instance")
)

// Unlimited is the capacity used for vehicles without a load limit.
const Unlimited = math.MaxInt32

// Instance is an immutable CVRP problem: a distance matrix over locations,
// the demand at each location, one capacity per vehicle and the depot index.
type Instance struct {
	dist      [][]float64
	demand    []int
	capacity  []int
	depot     int
	symmetric bool
}

// InstanceData is the plain form of an Instance used by loaders and codecs.
type InstanceData struct {
	DistanceMatrix    [][]float64 `json:"distanceMatrix" yaml:"distanceMatrix"`
	Demands           []int       `json:"demands,omitempty" yaml:"demands"`
	VehicleCapacities []int       `json:"vehicleCapacities" yaml:"vehicleCapacities"`
	Depot             int         `json:"depot" yaml:"depot"`
}

// NewInstance validates and copies the inputs. A nil demand slice means zero
// demand everywhere.
func NewInstance(dist [][]float64, demand, capacity []int, depot int) (*Instance, error) {
	n := len(dist)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty distance matrix", ErrInvalidInstance)
	}
	if depot < 0 || depot >= n {
		return nil, fmt.Errorf("%w: depot %d outside [0,%d)", ErrInvalidInstance, depot, n)
	}
	if demand == nil {
		demand = make([]int, n)
	}
	if len(demand) != n {
		return nil, fmt.Errorf("%w: %d demands for %d locations", ErrInvalidInstance, len(demand), n)
	}
	if len(capacity) == 0 {
		return nil, fmt.Errorf("%w: no vehicles", ErrInvalidInstance)
	}

	in := &Instance{
		dist:      make([][]float64, n),
		demand:    append([]int(nil), demand...),
		capacity:  append([]int(nil), capacity...),
		depot:     depot,
		symmetric: true,
	}
	for i, row := range dist {
		if len(row) != n {
			return nil, fmt.Errorf("%w: distance row %d has %d columns, want %d", ErrInvalidInstance, i, len(row), n)
		}
		for j, d := range row {
			if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				return nil, fmt.Errorf("%w: distance[%d][%d]=%v must be finite and non-negative", ErrInvalidInstance, i, j, d)
			}
		}
		if row[i] != 0 {
			return nil, fmt.Errorf("%w: distance[%d][%d]=%v, want 0", ErrInvalidInstance, i, i, row[i])
		}
		in.dist[i] = append([]float64(nil), row...)
	}
	for i := 0; i < n && in.symmetric; i++ {
		for j := i + 1; j < n; j++ {
			if in.dist[i][j] != in.dist[j][i] {
				in.symmetric = false
				break
			}
		}
	}
	for i, d := range in.demand {
		if d < 0 {
			return nil, fmt.Errorf("%w: demand[%d]=%d is negative", ErrInvalidInstance, i, d)
		}
	}
	if in.demand[depot] != 0 {
		return nil, fmt.Errorf("%w: depot demand is %d, want 0", ErrInvalidInstance, in.demand[depot])
	}
	for v, c := range in.capacity {
		if c <= 0 {
			return nil, fmt.Errorf("%w: capacity of vehicle %d is %d, want > 0", ErrInvalidInstance, v, c)
		}
	}
	return in, nil
}

// NewInstanceFromData is NewInstance over the plain representation.
func NewInstanceFromData(d InstanceData) (*Instance, error) {
	return NewInstance(d.DistanceMatrix, d.Demands, d.VehicleCapacities, d.Depot)
}

// Data returns a deep copy of the instance in plain form.
func (in *Instance) Data() InstanceData {
	dist := make([][]float64, len(in.dist))
	for i, row := range in.dist {
		dist[i] = append([]float64(nil), row...)
	}
	return InstanceData{
		DistanceMatrix:    dist,
		Demands:           append([]int(nil), in.demand...),
		VehicleCapacities: append([]int(nil), in.capacity...),
		Depot:             in.depot,
	}
}

func (in *Instance) NumLocations() int { return len(in.dist) }
func (in *Instance) NumVehicles() int  { return len(in.capacity) }
func (in *Instance) Depot() int        { return in.depot }
func (in *Instance) Symmetric() bool   { return in.symmetric }

// Demand returns the demand at location i.
func (in *Instance) Demand(i int) int { return in.demand[i] }

// Capacity returns the capacity of vehicle v.
func (in *Instance) Capacity(v int) int { return in.capacity[v] }

// Distance returns the travel distance from i to j.
func (in *Instance) Distance(i, j int) float64 { return in.dist[i][j] }

// Customers returns every non-depot location in ascending order.
func (in *Instance) Customers() []int {
	out := make([]int, 0, len(in.dist)-1)
	for i := range in.dist {
		if i != in.depot {
			out = append(out, i)
		}
	}
	return out
}

// TotalDemand sums the demand over all locations.
func (in *Instance) TotalDemand() int {
	total := 0
	for _, d := range in.demand {
		total += d
	}
	return total
}

// TotalCapacity sums vehicle capacities, saturating at math.MaxInt.
func (in *Instance) TotalCapacity() int {
	total := 0
	for _, c := range in.capacity {
		if total > math.MaxInt-c {
			return math.MaxInt
		}
		total += c
	}
	return total
}
