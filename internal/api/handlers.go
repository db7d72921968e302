package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fleetroute/internal/bench"
	"fleetroute/internal/instances"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
)

// RunsHandler handles POST/GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateRunRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
			return
		}
		if req.Wait {
			run, err := s.Runner.Run(r.Context(), req)
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, run)
			case run.ID != "" && errors.Is(err, opt.ErrInfeasibleInstance):
				// the failed run is stored; return it with the error status
				writeJSON(w, http.StatusUnprocessableEntity, run)
			default:
				writeError(w, r, "Run failed", err)
			}
			return
		}
		run, err := s.Runner.Submit(r.Context(), req)
		if err != nil {
			writeError(w, r, "Submit run failed", err)
			return
		}
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
				return
			}
			limit = n
		}
		items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
		if err != nil {
			writeError(w, r, "List runs failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RunByIDHandler handles GET /v1/runs/{id} and the /v1/runs/{id}/stream websocket
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	switch sub {
	case "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			writeError(w, r, "Get run failed", err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case "stream":
		s.RunStreamHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

// BenchmarksHandler handles POST /v1/benchmarks
func (s *Server) BenchmarksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.BenchmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateBenchmarkRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid benchmark request", err.Error(), r.URL.Path)
		return
	}
	resp, err := s.Runner.Benchmark(r.Context(), req)
	if err != nil {
		writeError(w, r, "Benchmark failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// BenchmarkByIDHandler handles GET /v1/benchmarks/{sweepId}
func (s *Server) BenchmarkByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/benchmarks/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	records, err := s.Store.ListBenchmark(r.Context(), id)
	if err != nil {
		writeError(w, r, "Get benchmark failed", err)
		return
	}
	writeJSON(w, http.StatusOK, model.BenchmarkResponse{SweepID: id, Records: records, Summary: bench.Summarize(records)})
}

// InstancesHandler lists the built-in instances.
func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	type item struct {
		Name      string `json:"name"`
		Locations int    `json:"locations"`
		Vehicles  int    `json:"vehicles"`
		Symmetric bool   `json:"symmetric"`
	}
	var items []item
	for _, name := range instances.BuiltinNames() {
		n, err := instances.Builtin{}.Load(name)
		if err != nil {
			continue
		}
		items = append(items, item{
			Name:      n.Name,
			Locations: n.Instance.NumLocations(),
			Vehicles:  n.Instance.NumVehicles(),
			Symmetric: n.Instance.Symmetric(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// OptimizerConfigHandler returns the effective search defaults.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.Runner.Defaults()
	algos := make([]string, 0, len(opt.Algorithms))
	for _, a := range opt.Algorithms {
		algos = append(algos, string(a))
	}
	defaults := map[string]any{
		"algorithm":        p.Algorithm,
		"iterations":       p.Tabu.Iterations,
		"timeBudgetMs":     p.Tabu.TimeBudget.Milliseconds(),
		"tenure":           p.Tabu.Tenure,
		"stagnationLimit":  p.Tabu.StagnationLimit,
		"relocate":         p.Tabu.Relocate,
		"twoOptPolicy":     p.TwoOpt.Policy,
		"twoOptIterations": p.TwoOpt.Iterations,
		"snapshotEvery":    p.SnapshotEvery,
	}
	writeJSON(w, 200, map[string]any{"defaults": defaults, "algorithms": algos})
}

// RunMetricsHandler returns in-process search metrics for one instance,
// keyed by algorithm.
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	inst := r.URL.Query().Get("instance")
	if inst == "" {
		writeProblem(w, http.StatusBadRequest, "Missing instance", "instance query parameter is required", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instance": inst, "metrics": opt.GetMetrics(inst)})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
