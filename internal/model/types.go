package model

import (
	"time"

	"fleetroute/internal/bench"
	"fleetroute/internal/opt"
)

// RunRequest is the body of POST /v1/runs. Exactly one of Instance and
// Builtin names the problem; zero-valued search fields fall back to the
// configured defaults.
type RunRequest struct {
	Name             string            `json:"name,omitempty"`
	Instance         *opt.InstanceData `json:"instance,omitempty"`
	Builtin          string            `json:"builtin,omitempty"`
	Algorithm        string            `json:"algorithm,omitempty"`
	Seed             int64             `json:"seed,omitempty"`
	Iterations       int               `json:"iterations,omitempty"`
	TimeBudgetMs     int               `json:"timeBudgetMs,omitempty"`
	Tenure           int               `json:"tenure,omitempty"`
	StagnationLimit  *int              `json:"stagnationLimit,omitempty"`
	Relocate         *bool             `json:"relocate,omitempty"`
	TwoOptPolicy     string            `json:"twoOptPolicy,omitempty"`
	TwoOptIterations int               `json:"twoOptIterations,omitempty"`
	Wait             bool              `json:"wait,omitempty"`
}

type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Done reports whether the run reached a final status.
func (s RunStatus) Done() bool { return s == RunSucceeded || s == RunFailed }

type RouteOut struct {
	Vehicle  int     `json:"vehicle"`
	Stops    []int   `json:"stops"`
	Load     int     `json:"load"`
	Capacity int     `json:"capacity"`
	Distance float64 `json:"distance"`
}

// Run is a stored solve. Distance stays null until the run succeeds.
type Run struct {
	ID         string       `json:"id"`
	Name       string       `json:"name,omitempty"`
	Instance   string       `json:"instance"`
	Algorithm  string       `json:"algorithm"`
	Status     RunStatus    `json:"status"`
	Seed       int64        `json:"seed"`
	Routes     []RouteOut   `json:"routes,omitempty"`
	Distance   *float64     `json:"distance"`
	DurationMs int64        `json:"durationMs"`
	Metrics    *opt.Metrics `json:"metrics,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

// NamedInstance is an inline instance in a benchmark request.
type NamedInstance struct {
	Name string `json:"name"`
	opt.InstanceData
}

type BenchmarkRequest struct {
	Builtins     []string        `json:"builtins,omitempty"`
	Instances    []NamedInstance `json:"instances,omitempty"`
	Algorithms   []string        `json:"algorithms"`
	Runs         int             `json:"runs,omitempty"`
	Seed         int64           `json:"seed,omitempty"`
	Iterations   int             `json:"iterations,omitempty"`
	TimeBudgetMs int             `json:"timeBudgetMs,omitempty"`
}

type BenchmarkResponse struct {
	SweepID string          `json:"sweepId"`
	Records []bench.Record  `json:"records"`
	Summary []bench.Summary `json:"summary"`
}

// Event is a run lifecycle message fanned out to stream subscribers.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

const (
	EventRunProgress  = "run.progress"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)
