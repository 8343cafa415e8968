package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	gated := r.With(operator(d))
	gated.Get("/healthz", handlers.Healthz(d))
	gated.Get("/readyz", handlers.Readyz(d))
}
