package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/share"
)

// SharePrefill builds the share form from ?title=&text=&url=.
func SharePrefill(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := d.Share.Prefill(r.Context(), share.ParseParams(r.URL.Query()))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, p)
	}
}

// ShareSave saves the shared link into the chosen folder.
func ShareSave(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req share.SaveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		b, err := d.Share.Save(r.Context(), req)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, d, http.StatusCreated, b)
	}
}

// ShareCreateFolder adds a folder from the share page and selects it.
func ShareCreateFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		list, err := d.Share.CreateFolder(r.Context(), req.Name)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, d, http.StatusCreated, list)
	}
}
