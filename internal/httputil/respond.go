// Package httputil provides the JSON response envelope and request parsing
// shared by every handler.
package httputil

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
)

// envelope is the uniform response body: {"ok": true, "data": ...} on
// success, {"ok": false, "error": "..."} on failure.
type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// RespondWithJSON writes a JSON body with the given status code.
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithData writes a success envelope.
func RespondWithData(w http.ResponseWriter, data any) {
	RespondWithJSON(w, http.StatusOK, envelope{OK: true, Data: data})
}

// RespondWithError writes an error envelope with an explicit status code.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, envelope{OK: false, Error: message})
}

// HandleError translates a service error into the envelope. Client errors
// keep their status and message; anything else is logged and reported as an
// opaque 500 unless debug mode exposes the message.
func HandleError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	code := apperrors.StatusOf(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	RespondWithError(w, code, apperrors.MessageOf(err, debug))
}

// ParseJSONRequest decodes a JSON request body. Non-GET requests must
// declare Content-Type application/json.
func ParseJSONRequest(r *http.Request, target any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return apperrors.BadRequest("Content-Type must be application/json")
		}
	} else if r.Method != http.MethodGet {
		return apperrors.BadRequest("Content-Type must be application/json")
	}

	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperrors.BadRequest("Malformed JSON request body")
	}
	return nil
}
