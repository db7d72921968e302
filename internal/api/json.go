package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleetroute/internal/opt"
	"fleetroute/internal/runs"
	"fleetroute/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// errorStatus maps service and engine errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, runs.ErrBadRequest),
		errors.Is(err, opt.ErrInvalidInstance),
		errors.Is(err, opt.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, opt.ErrInfeasibleInstance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	writeProblem(w, errorStatus(err), title, err.Error(), r.URL.Path)
}
