package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports whether Redis answers. The offline cache is informational:
// without an installed version the shell is still proxied.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redisStatus := checkRedis(r.Context(), d)
		components := map[string]componentStatus{
			"redis":   redisStatus,
			"offline": checkWorker(d),
		}
		if d.Bridge != nil {
			components["bridge"] = componentStatus{OK: true, Mode: "connections=" + strconv.Itoa(d.Bridge.Registry().Len())}
		}

		status := http.StatusOK
		if !redisStatus.OK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, d, status, readyzResponse{Ready: redisStatus.OK, Components: components})
	}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: false, Error: "client not initialized"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Error: "timeout"}
	}
	return componentStatus{OK: true}
}

func checkWorker(d deps.Deps) componentStatus {
	if d.Worker == nil {
		return componentStatus{OK: false, Mode: "disabled"}
	}
	state, active, _ := d.Worker.State()
	if active == "" {
		return componentStatus{OK: false, Mode: "passthrough"}
	}
	return componentStatus{OK: true, Mode: string(state), Version: active}
}
