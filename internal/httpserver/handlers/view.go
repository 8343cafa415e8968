package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/view"
)

// ViewPage returns the page model, optionally opening ?folder=.
func ViewPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := d.View.Load(r.Context(), r.URL.Query().Get("folder"))
		writePage(w, r, d, page, err)
	}
}

// ToggleArchiveMode flips between folders and archive folders.
func ToggleArchiveMode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := d.View.ToggleArchiveMode(r.Context())
		writePage(w, r, d, page, err)
	}
}

// ViewCreateFolder creates a folder in the current mode and opens it.
func ViewCreateFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		page, err := d.View.CreateFolder(r.Context(), req.Name)
		writePage(w, r, d, page, err)
	}
}

// SelectFolder opens a folder of the current mode.
func SelectFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := d.View.SelectFolder(r.Context(), chi.URLParam(r, "folderID"))
		writePage(w, r, d, page, err)
	}
}

func writePage(w http.ResponseWriter, r *http.Request, d deps.Deps, page *view.Page, err error) {
	if err != nil {
		writeError(w, r, d, err)
		return
	}
	writeJSON(w, d, http.StatusOK, page)
}
