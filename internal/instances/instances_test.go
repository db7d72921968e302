package instances

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func TestBuiltinLoad(t *testing.T) {
	n, err := Resolve("builtin:six-two")
	require.NoError(t, err)
	assert.Equal(t, "six-two", n.Name)
	assert.Equal(t, 7, n.Instance.NumLocations())
	assert.Equal(t, 2, n.Instance.NumVehicles())

	_, err = Resolve("builtin:nope")
	assert.ErrorIs(t, err, ErrUnknownInstance)

	assert.Equal(t, []string{"six-two", "square4", "square4-capacity"}, BuiltinNames())
}

func TestFileSourceYAML(t *testing.T) {
	dir := t.TempDir()
	body := `name: tri
depot: 0
distanceMatrix:
  - [0, 1, 2]
  - [1, 0, 1]
  - [2, 1, 0]
demands: [0, 2, 3]
vehicleCapacities: [5]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.yaml"), []byte(body), 0o644))

	n, err := FileSource{Dir: dir}.Load("tri.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tri", n.Name)
	assert.Equal(t, 5, n.Instance.TotalDemand())
	assert.Equal(t, 5, n.Instance.Capacity(0))
}

func TestFileSourceJSONWithCoordinates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.json")
	body := `{"depot": 0, "coordinates": [[0,0],[3,4],[0,4]], "vehicles": 2}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	n, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "grid", n.Name)
	assert.InDelta(t, 5.0, n.Instance.Distance(0, 1), 1e-12)
	assert.InDelta(t, 3.0, n.Instance.Distance(1, 2), 1e-12)
	assert.Equal(t, opt.Unlimited, n.Instance.Capacity(1))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("depot: 0\ndistanceMatirx: [[0]]\n"))
	assert.Error(t, err)
}

func TestSpecBuildErrors(t *testing.T) {
	_, err := Spec{DistanceMatrix: [][]float64{{0}}, Coordinates: [][2]float64{{0, 0}}, Vehicles: 1}.Build()
	assert.ErrorIs(t, err, opt.ErrInvalidInstance)

	_, err = Spec{DistanceMatrix: [][]float64{{0}}, VehicleCapacities: []int{1}, Vehicles: 2}.Build()
	assert.ErrorIs(t, err, opt.ErrInvalidInstance)

	_, err = Spec{DistanceMatrix: [][]float64{{0}}}.Build()
	assert.ErrorIs(t, err, opt.ErrInvalidInstance)
}

func TestFileSourceMissing(t *testing.T) {
	_, err := FileSource{}.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrUnknownInstance)
}
