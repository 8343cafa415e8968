package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/mw"
)

func init() { Register(registerReload) }

// Reload also pins the Host header.
func registerReload(r chi.Router, d deps.Deps) {
	r.With(operator(d), mw.EnforceHost(d.AllowedHosts, d.Logger)).
		Post("/reload", handlers.Reload(d))
}
