package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/openbinder/internal/backup"
	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// maxBackupBytes caps uploaded backup files.
const maxBackupBytes = 32 << 20

// Export downloads the user's data as a backup file.
func Export(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := d.Backup.Export(r.Context(), nil)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, backup.FileName(d.Now())))
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write(data); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}

// Restore replaces the user's data with an uploaded backup. The file is
// validated before anything is deleted.
func Restore(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = fmt.Errorf("%w: file exceeds %d bytes", domain.ErrMalformedBackup, tooLarge.Limit)
			}
			writeError(w, r, d, err)
			return
		}
		doc, err := backup.Parse(data)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		stats, err := d.Backup.Import(r.Context(), doc, confirmed(r), nil)
		if err != nil {
			writeErrorPrompt(w, r, d, err, "This will replace all your current bookmarks. Continue?")
			return
		}
		writeJSON(w, d, http.StatusOK, stats)
	}
}
