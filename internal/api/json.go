package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"foodsim/internal/graph"
	"foodsim/internal/opt"
	"foodsim/internal/sim"
	"foodsim/internal/store"
	"foodsim/internal/worker"
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
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps simulation errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sim.ErrNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, worker.ErrUnknownWorker):
		status = http.StatusNotFound
	case errors.Is(err, worker.ErrInProgress), errors.Is(err, worker.ErrDuplicateWorker),
		errors.Is(err, graph.ErrDuplicateEdge):
		status = http.StatusConflict
	case errors.Is(err, opt.ErrNoPathFound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, sim.ErrInvalidDestination), errors.Is(err, sim.ErrInvalidFood), errors.Is(err, sim.ErrInvalidStage),
		errors.Is(err, graph.ErrInvalidVertex), errors.Is(err, graph.ErrInvalidEdge):
		status = http.StatusBadRequest
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return false
	}
	return true
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
