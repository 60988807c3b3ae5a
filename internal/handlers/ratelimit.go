package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/middleware"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/ratelimit"
	"github.com/naazbooks/storefront/internal/session"
)

// RateLimitStatusHandler reports the caller's standing for {action}.
func RateLimitStatusHandler(m *ratelimit.Middleware, cfg *config.Config, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, ok := knownAction(w, r)
		if !ok {
			return
		}

		opts := callerOptions(r, cfg, tracker)
		resp := m.Status(r.Context(), action, opts)
		if resp == nil {
			sendJSON(w, http.StatusOK, models.RateLimitStatusResponse{
				Action:    action,
				Remaining: m.Config(action, opts).MaxRequests,
			})
			return
		}

		sendJSON(w, http.StatusOK, models.RateLimitStatusResponse{
			Action:            action,
			Limited:           !resp.Allowed,
			Remaining:         resp.Remaining,
			ResetAt:           resp.ResetTime.UTC().Format(time.RFC3339),
			RetryAfterSeconds: resp.RetryAfterSeconds(),
			Message:           resp.Message,
		})
	}
}

// RateLimitResetHandler clears the caller's counter for {action}. It needs
// a valid session.
func RateLimitResetHandler(m *ratelimit.Middleware, cfg *config.Config, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, ok := knownAction(w, r)
		if !ok {
			return
		}

		result := tracker.ValidateSession(r.Context(), middleware.RequestScope(r).Local)
		if !result.IsValid {
			sendError(w, result.Error, "SESSION_INVALID", http.StatusUnauthorized)
			return
		}

		opts := callerOptions(r, cfg, tracker)
		if err := m.Reset(r.Context(), action, opts); err != nil {
			slog.Error("failed to reset rate limit", "error", err, "action", action)
			sendError(w, "Failed to reset rate limit", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func knownAction(w http.ResponseWriter, r *http.Request) (string, bool) {
	action := mux.Vars(r)["action"]
	if _, ok := ratelimit.DefaultActions()[action]; !ok {
		sendError(w, "Unknown rate limit action", "UNKNOWN_ACTION", http.StatusNotFound)
		return "", false
	}
	return action, true
}

// callerOptions identifies the caller the same way middleware.RateLimit does.
func callerOptions(r *http.Request, cfg *config.Config, tracker *session.Tracker) ratelimit.Options {
	return ratelimit.Options{
		UserID: currentUserID(r, tracker),
		Hint:   middleware.RequestHint(r, cfg),
	}
}
