package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerBackup) }

func registerBackup(r chi.Router, d deps.Deps) {
	r.Get("/api/backup", handlers.Export(d))
	r.Post("/api/restore", handlers.Restore(d))
}
