package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/library"
)

func namespace(r *http.Request) (domain.Namespace, error) {
	return domain.ParseNamespace(chi.URLParam(r, "ns"))
}

// ListFolders returns the folders of a namespace, oldest first.
func ListFolders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := namespace(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		folders, err := d.Store.ListFolders(r.Context(), ns)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if folders == nil {
			folders = []*domain.Folder{}
		}
		writeJSON(w, d, http.StatusOK, folders)
	}
}

// CreateFolder adds a folder to a namespace.
func CreateFolder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := namespace(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		var req nameRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		f, err := d.Store.CreateFolder(r.Context(), ns, req.Name)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, d, http.StatusCreated, f)
	}
}

// ListBookmarks returns the bookmarks of a folder, newest first.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := namespace(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		list, err := d.Store.ListBookmarks(r.Context(), ns, chi.URLParam(r, "fid"))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if list == nil {
			list = []*domain.Bookmark{}
		}
		writeJSON(w, d, http.StatusOK, list)
	}
}

// CreateBookmark saves a link into a folder.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := namespace(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		var in domain.BookmarkInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, d, err)
			return
		}
		b, err := d.Store.CreateBookmark(r.Context(), ns, chi.URLParam(r, "fid"), in)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, d, http.StatusCreated, b)
	}
}

// DeleteBookmark removes a bookmark after confirmation. In the archived
// namespace the removal is permanent.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := namespace(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		err = d.Library.DeleteBookmark(r.Context(), ns, chi.URLParam(r, "fid"), chi.URLParam(r, "id"), confirmed(r))
		if err != nil {
			writeErrorPrompt(w, r, d, err, library.ConfirmPrompt(ns, library.ActionDelete))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PreviewBookmark returns the preview modal of a bookmark.
func PreviewBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := namespace(r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		m, err := d.View.Preview(r.Context(), ns, chi.URLParam(r, "fid"), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, m)
	}
}

// Archive moves an active bookmark into the archive.
func Archive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Library.Archive(r.Context(), chi.URLParam(r, "fid"), chi.URLParam(r, "id"), confirmed(r))
		if err != nil {
			writeErrorPrompt(w, r, d, err, library.ConfirmPrompt(domain.Active, library.ActionArchive))
			return
		}
		writeJSON(w, d, http.StatusOK, res)
	}
}

// Unarchive restores an archived bookmark.
func Unarchive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Library.Unarchive(r.Context(), chi.URLParam(r, "fid"), chi.URLParam(r, "id"), confirmed(r))
		if err != nil {
			writeErrorPrompt(w, r, d, err, library.ConfirmPrompt(domain.Archived, library.ActionRestore))
			return
		}
		writeJSON(w, d, http.StatusOK, res)
	}
}
