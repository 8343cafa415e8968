package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/handlers"
)

func init() { Register(registerLibrary) }

func registerLibrary(r chi.Router, d deps.Deps) {
	r.Post("/api/active/folders/{fid}/bookmarks/{id}/archive", handlers.Archive(d))
	r.Post("/api/archived/folders/{fid}/bookmarks/{id}/unarchive", handlers.Unarchive(d))

	r.Route("/api/{ns}/folders", func(r chi.Router) {
		r.Get("/", handlers.ListFolders(d))
		r.Post("/", handlers.CreateFolder(d))
		r.Get("/{fid}/bookmarks", handlers.ListBookmarks(d))
		r.Post("/{fid}/bookmarks", handlers.CreateBookmark(d))
		r.Delete("/{fid}/bookmarks/{id}", handlers.DeleteBookmark(d))
		r.Get("/{fid}/bookmarks/{id}/preview", handlers.PreviewBookmark(d))
	})
}
