package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerShare) }

func registerShare(r chi.Router, d deps.Deps) {
	r.Route("/api/share", func(r chi.Router) {
		r.Use(limited(d))
		r.Get("/", handlers.SharePrefill(d))
		r.Post("/", handlers.ShareSave(d))
		r.Post("/folders", handlers.ShareCreateFolder(d))
	})
}
