package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/naazbooks/storefront/internal/cart"
	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/csrf"
	"github.com/naazbooks/storefront/internal/middleware"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/session"
)

// CreateSessionHandler starts a session for a user the account backend has
// already authenticated. The request carries the backend's signed assertion;
// the session is created for its subject only. The guest cart of the client
// is merged into the user's cart and the CSRF token is rotated.
func CreateSessionHandler(tracker *session.Tracker, carts *cart.Service, manager *csrf.Manager, verifier *session.AssertionVerifier, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil {
			sendError(w, "Sign-in is not configured", "SIGN_IN_UNAVAILABLE", http.StatusServiceUnavailable)
			return
		}

		var req models.CreateSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			sendError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.Assertion) == "" {
			sendError(w, "assertion is required", "ASSERTION_REQUIRED", http.StatusUnauthorized)
			return
		}
		userID, err := verifier.Verify(req.Assertion)
		if err != nil {
			slog.Warn("sign-in assertion rejected", "error", err, "client_ip", middleware.ClientIP(r, cfg))
			sendError(w, "Sign-in could not be verified", "ASSERTION_INVALID", http.StatusUnauthorized)
			return
		}
		if claimed := strings.TrimSpace(req.UserID); claimed != "" && claimed != userID {
			slog.Warn("sign-in user does not match assertion", "user_id", claimed, "subject", userID)
			sendError(w, "Sign-in could not be verified", "ASSERTION_INVALID", http.StatusUnauthorized)
			return
		}
		req.UserID = userID
		if req.DeviceInfo == "" {
			req.DeviceInfo = r.UserAgent()
		}

		ctx := r.Context()
		scope := middleware.RequestScope(r)

		info, err := tracker.CreateSession(ctx, scope.Local, req.UserID, req.DeviceInfo, middleware.ClientIP(r, cfg))
		if errors.Is(err, repository.ErrInvalidInput) {
			sendError(w, "Invalid session request", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		if err != nil {
			slog.Error("failed to create session", "error", err, "user_id", req.UserID)
			sendError(w, "Failed to create session", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if _, err := carts.MergeGuestCart(ctx, scope.Local, info.UserID); err != nil {
			slog.Warn("guest cart not merged", "error", err, "user_id", info.UserID)
		}

		token := manager.RefreshToken(ctx, scope)
		sendJSON(w, http.StatusCreated, models.CreateSessionResponse{
			Session:   info,
			CSRFToken: token.Token,
		})
	}
}

// CurrentSessionHandler validates the client's session. Invalid sessions
// answer 401 with the reason in the body.
func CurrentSessionHandler(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := tracker.ValidateSession(r.Context(), middleware.RequestScope(r).Local)

		status := http.StatusOK
		if !result.IsValid {
			status = http.StatusUnauthorized
		}
		sendJSON(w, status, result.Response())
	}
}

// RenewSessionHandler extends the client's session.
func RenewSessionHandler(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := tracker.RenewSession(r.Context(), middleware.RequestScope(r).Local)
		if errors.Is(err, session.ErrInvalidSession) {
			sendError(w, "Session cannot be renewed", "SESSION_INVALID", http.StatusUnauthorized)
			return
		}
		if err != nil {
			slog.Error("failed to renew session", "error", err)
			sendError(w, "Failed to renew session", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		sendJSON(w, http.StatusOK, info)
	}
}

// DestroyCurrentSessionHandler signs the client out and drops its CSRF token.
func DestroyCurrentSessionHandler(tracker *session.Tracker, manager *csrf.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		scope := middleware.RequestScope(r)

		info, err := tracker.CurrentSession(ctx, scope.Local)
		if err != nil {
			sendError(w, "No active session", "NO_SESSION", http.StatusNotFound)
			return
		}

		err = tracker.DestroySession(ctx, scope.Local, info.SessionID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to destroy session", "error", err)
			sendError(w, "Failed to end session", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if err != nil {
			// Already gone on the server; validation drops the stale local copy.
			tracker.ValidateSession(ctx, scope.Local)
		}

		manager.ClearToken(ctx, scope)
		w.WriteHeader(http.StatusNoContent)
	}
}

// UserSessionsHandler lists the active sessions of the signed-in user.
func UserSessionsHandler(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := authorizeUser(w, r, tracker)
		if !ok {
			return
		}

		sessions, err := tracker.GetUserSessions(r.Context(), current.UserID)
		if err != nil {
			slog.Error("failed to list sessions", "error", err, "user_id", current.UserID)
			sendError(w, "Failed to list sessions", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []models.SessionInfo{}
		}
		sendJSON(w, http.StatusOK, models.UserSessionsResponse{UserID: current.UserID, Sessions: sessions})
	}
}

// DestroyUserSessionsHandler ends every session of the signed-in user
// except the one making the request.
func DestroyUserSessionsHandler(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := authorizeUser(w, r, tracker)
		if !ok {
			return
		}

		n, err := tracker.DestroyAllSessions(r.Context(), middleware.RequestScope(r).Local, current.UserID, current.SessionID)
		if err != nil {
			slog.Error("failed to destroy sessions", "error", err, "user_id", current.UserID)
			sendError(w, "Failed to end sessions", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		sendJSON(w, http.StatusOK, models.DestroySessionsResponse{Destroyed: n})
	}
}

// authorizeUser requires a valid session belonging to the {userID} route
// variable. It writes the error response itself when it returns false.
func authorizeUser(w http.ResponseWriter, r *http.Request, tracker *session.Tracker) (*models.SessionInfo, bool) {
	result := tracker.ValidateSession(r.Context(), middleware.RequestScope(r).Local)
	if !result.IsValid {
		sendError(w, result.Error, "SESSION_INVALID", http.StatusUnauthorized)
		return nil, false
	}
	if result.Session.UserID != mux.Vars(r)["userID"] {
		sendError(w, "Cannot access sessions of another user", "FORBIDDEN", http.StatusForbidden)
		return nil, false
	}
	return result.Session, true
}
