package instances

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"fleetroute/internal/opt"
)

// ErrUnknownInstance is returned when a reference names no known instance.
var ErrUnknownInstance = errors.New("unknown instance")

// BuiltinPrefix marks references to compiled-in fixtures, e.g. "builtin:six-two".
const BuiltinPrefix = "builtin:"

// Named is an instance together with the name it is reported under.
type Named struct {
	Name     string
	Instance *opt.Instance
}

// Source supplies instances by reference.
type Source interface {
	Name() string
	Load(ref string) (Named, error)
}

// Builtin serves the fixture instances.
type Builtin struct{}

var builtins = map[string]func() *opt.Instance{
	"square4":          opt.Square4,
	"square4-capacity": opt.Square4Capacity,
	"six-two":          opt.SixTwo,
}

func (Builtin) Name() string { return "builtin" }

func (Builtin) Load(ref string) (Named, error) {
	name := strings.TrimPrefix(ref, BuiltinPrefix)
	build, ok := builtins[name]
	if !ok {
		return Named{}, fmt.Errorf("%w: %q (have %s)", ErrUnknownInstance, name, strings.Join(BuiltinNames(), ", "))
	}
	return Named{Name: name, Instance: build()}, nil
}

// BuiltinNames lists the fixture names in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve loads "builtin:<name>" from the fixtures and anything else from disk.
func Resolve(ref string) (Named, error) {
	if strings.HasPrefix(ref, BuiltinPrefix) {
		return Builtin{}.Load(ref)
	}
	return FileSource{}.Load(ref)
}
