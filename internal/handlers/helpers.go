package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/naazbooks/storefront/internal/middleware"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 * 1024

// sendError writes a JSON error response
func sendError(w http.ResponseWriter, message, code string, status int) {
	sendJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}

// sendJSON writes v as the JSON response body
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathInt64 parses the positive integer route variable name.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// currentUserID returns the user of the client's session once it is
// confirmed unexpired and still active, or "" for guests. Revoked and
// expired sessions fall back to guest.
func currentUserID(r *http.Request, tracker *session.Tracker) string {
	info, err := tracker.ActiveSession(r.Context(), middleware.RequestScope(r).Local)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			slog.Debug("treating request as guest", "error", err)
		}
		return ""
	}
	return info.UserID
}

// UserFromSession adapts currentUserID for the rate limit middleware.
func UserFromSession(tracker *session.Tracker) middleware.UserFunc {
	return func(r *http.Request) string {
		return currentUserID(r, tracker)
	}
}
