package instances

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fleetroute/internal/opt"
)

// Spec is the on-disk instance format. JSON files parse through the same
// decoder since YAML is a superset of JSON.
//
// Either DistanceMatrix or Coordinates must be given; coordinates are turned
// into a Euclidean matrix. Without VehicleCapacities, Vehicles vehicles with
// unlimited capacity are used.
type Spec struct {
	Name              string       `yaml:"name" json:"name,omitempty"`
	Depot             int          `yaml:"depot" json:"depot"`
	DistanceMatrix    [][]float64  `yaml:"distanceMatrix" json:"distanceMatrix,omitempty"`
	Coordinates       [][2]float64 `yaml:"coordinates" json:"coordinates,omitempty"`
	Demands           []int        `yaml:"demands" json:"demands,omitempty"`
	VehicleCapacities []int        `yaml:"vehicleCapacities" json:"vehicleCapacities,omitempty"`
	Vehicles          int          `yaml:"vehicles" json:"vehicles,omitempty"`
}

// Build validates the spec and returns the instance.
func (s Spec) Build() (*opt.Instance, error) {
	dist := s.DistanceMatrix
	switch {
	case len(dist) > 0 && len(s.Coordinates) > 0:
		return nil, fmt.Errorf("%w: give distanceMatrix or coordinates, not both", opt.ErrInvalidInstance)
	case len(dist) == 0 && len(s.Coordinates) > 0:
		dist = euclidean(s.Coordinates)
	}
	capacity := s.VehicleCapacities
	if len(capacity) == 0 && s.Vehicles > 0 {
		capacity = make([]int, s.Vehicles)
		for v := range capacity {
			capacity[v] = opt.Unlimited
		}
	}
	if len(s.VehicleCapacities) > 0 && s.Vehicles > 0 && s.Vehicles != len(s.VehicleCapacities) {
		return nil, fmt.Errorf("%w: vehicles=%d but %d capacities", opt.ErrInvalidInstance, s.Vehicles, len(s.VehicleCapacities))
	}
	return opt.NewInstance(dist, s.Demands, capacity, s.Depot)
}

func euclidean(pts [][2]float64) [][]float64 {
	dist := make([][]float64, len(pts))
	for i, p := range pts {
		dist[i] = make([]float64, len(pts))
		for j, q := range pts {
			if i != j {
				dist[i][j] = math.Hypot(p[0]-q[0], p[1]-q[1])
			}
		}
	}
	return dist
}

// Parse decodes a spec with strict field checking so typos are rejected.
func Parse(data []byte) (Spec, error) {
	var s Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Spec{}, fmt.Errorf("parsing instance: %w", err)
	}
	return s, nil
}

// FileSource reads YAML or JSON instance files.
type FileSource struct {
	// Dir, when set, is joined in front of relative references.
	Dir string
}

func (FileSource) Name() string { return "file" }

func (f FileSource) Load(ref string) (Named, error) {
	path := ref
	if f.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Named{}, fmt.Errorf("%w: %s", ErrUnknownInstance, path)
		}
		return Named{}, fmt.Errorf("reading instance: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return Named{}, fmt.Errorf("%s: %w", path, err)
	}
	in, err := spec.Build()
	if err != nil {
		return Named{}, fmt.Errorf("%s: %w", path, err)
	}
	name := spec.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Named{Name: name, Instance: in}, nil
}
