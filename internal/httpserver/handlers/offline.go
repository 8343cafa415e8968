package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
)

type workerState struct {
	State   string `json:"state"`
	Active  string `json:"active,omitempty"`
	Waiting string `json:"waiting,omitempty"`
}

// WorkerControl handles control messages for the offline worker. The body is
// the bare message, e.g. skipWaiting.
func WorkerControl(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Worker == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		msg := strings.Trim(strings.TrimSpace(string(body)), `"`)
		if err := d.Worker.Control(r.Context(), msg); err != nil {
			writeError(w, r, d, err)
			return
		}
		state, active, waiting := d.Worker.State()
		writeJSON(w, d, http.StatusOK, workerState{State: string(state), Active: active, Waiting: waiting})
	}
}
