package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerOffline) }

// The worker owns every path no other route claims.
func registerOffline(r chi.Router, d deps.Deps) {
	r.With(operator(d)).Post("/sw/control", handlers.WorkerControl(d))
	if d.Worker != nil {
		r.Handle("/*", d.Worker)
	}
}
