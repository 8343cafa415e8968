package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerView) }

func registerView(r chi.Router, d deps.Deps) {
	r.Route("/api/view", func(r chi.Router) {
		r.Get("/", handlers.ViewPage(d))
		r.Post("/archive-mode", handlers.ToggleArchiveMode(d))
		r.Post("/folders", handlers.ViewCreateFolder(d))
		r.Post("/select/{folderID}", handlers.SelectFolder(d))
	})
}
