// Package health serves the liveness and readiness probes mounted beside
// /metrics on the telemetry mux.
//
// GET /healthz always answers 200: a process that can serve HTTP is alive.
// GET /readyz answers 200 only while every registered [Checker] passes;
// voxd registers a checker for the config watcher there, so a deleted or
// broken config file flips readiness without killing the assistant.
//
// Responses are JSON with a top-level "status" ("ok" or "fail") and a
// per-checker "checks" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. A stuck checker must not
// hold the probe request open indefinitely.
const checkTimeout = 5 * time.Second

// Checker is one named readiness condition. Check returns nil while the
// condition holds and must respect context cancellation.
type Checker struct {
	// Name keys the check in the JSON response (e.g. "config").
	Name string

	Check func(ctx context.Context) error
}

// result is the JSON body of both probe responses.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. The checker set is fixed at
// construction, which keeps the handler safe for concurrent requests without
// locking.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating the given checkers, in order, on each
// readiness request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz answers the liveness probe with 200 unconditionally.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers the readiness probe: 200 when every checker passes, 503
// with the failing checks named otherwise. Each checker runs under a
// [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register mounts /healthz and /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
