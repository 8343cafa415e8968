package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
)

type healthzResponse struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Version        string  `json:"version,omitempty"`
	Commit         string  `json:"commit,omitempty"`
	BuildDate      string  `json:"build_date,omitempty"`
	GoVersion      string  `json:"go_version,omitempty"`
	OfflineVersion string  `json:"offline_version,omitempty"`
	BridgeConns    int     `json:"bridge_connections"`
}

// Healthz is liveness only; it never touches Redis.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
		}
		if d.Worker != nil {
			_, resp.OfflineVersion, _ = d.Worker.State()
		}
		if d.Bridge != nil {
			resp.BridgeConns = d.Bridge.Registry().Len()
		}
		writeJSON(w, d, http.StatusOK, resp)
	}
}
