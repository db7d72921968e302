package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"fleetroute/internal/opt"
)

// ErrNoSolution is returned by a Reference that ran but found no tour set.
var ErrNoSolution = errors.New("reference solver found no solution")

// Reference is an external solver used as a comparison oracle.
type Reference interface {
	Solve(ctx context.Context, in *opt.Instance) (opt.Solution, error)
}

// ExecReference runs a solver command that reads the instance as JSON on
// stdin and writes either {"routes": [[...]], "objective": x} or
// {"status": "no_solution"} on stdout.
type ExecReference struct {
	Command string
	Args    []string
	Timeout time.Duration
}

type referenceOutput struct {
	Status    string   `json:"status"`
	Routes    [][]int  `json:"routes"`
	Objective *float64 `json:"objective"`
}

func (r ExecReference) Solve(ctx context.Context, in *opt.Instance) (opt.Solution, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	input, err := json.Marshal(in.Data())
	if err != nil {
		return opt.Solution{}, fmt.Errorf("encode instance: %w", err)
	}
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return opt.Solution{}, fmt.Errorf("reference %s: %w", r.Command, err)
		}
		return opt.Solution{}, fmt.Errorf("reference %s: %w: %s", r.Command, err, msg)
	}
	return decodeReference(in, stdout.Bytes())
}

func decodeReference(in *opt.Instance, data []byte) (opt.Solution, error) {
	var out referenceOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return opt.Solution{}, fmt.Errorf("decode reference output: %w", err)
	}
	if out.Status == "no_solution" || (out.Routes == nil && out.Objective == nil) {
		return opt.Solution{}, ErrNoSolution
	}
	s := in.SolutionFromStops(out.Routes)
	if err := in.Validate(s); err != nil {
		return opt.Solution{}, fmt.Errorf("reference output: %w", err)
	}
	return s, nil
}

// ReferenceFunc adapts a function to Reference.
type ReferenceFunc func(ctx context.Context, in *opt.Instance) (opt.Solution, error)

func (f ReferenceFunc) Solve(ctx context.Context, in *opt.Instance) (opt.Solution, error) {
	return f(ctx, in)
}
