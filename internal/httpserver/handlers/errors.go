package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// maxJSONBody caps request bodies of the JSON endpoints (restore excluded).
const maxJSONBody = 64 << 10

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Prompt string `json:"prompt,omitempty"`
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrFolderExists):
		return http.StatusConflict, "folder_exists"
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, "confirmation_required"
	case errors.Is(err, domain.ErrMalformedBackup):
		return http.StatusBadRequest, "malformed_backup"
	case errors.Is(err, domain.ErrFolderRequired):
		return http.StatusBadRequest, "folder_required"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, d deps.Deps, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// writeError answers with the status of err. Internal failures are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	writeErrorPrompt(w, r, d, err, "")
}

func writeErrorPrompt(w http.ResponseWriter, r *http.Request, d deps.Deps, err error, prompt string) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		d.Logger.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		msg = http.StatusText(status)
	}
	if status != http.StatusPreconditionRequired {
		prompt = ""
	}
	writeJSON(w, d, status, errorBody{Error: msg, Code: code, Prompt: prompt})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func confirmed(r *http.Request) bool {
	switch r.URL.Query().Get("confirm") {
	case "true", "1", "yes":
		return true
	}
	return false
}

type nameRequest struct {
	Name string `json:"name"`
}
