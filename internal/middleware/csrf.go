package middleware

import (
	"log/slog"
	"net/http"

	"github.com/naazbooks/storefront/internal/csrf"
	"github.com/naazbooks/storefront/internal/models"
)

// CSRF rejects state-changing requests whose X-CSRF-Token header does not
// match the client's stored token. When the stored token had expired the
// 403 response carries a replacement in new_token.
func CSRF(manager *csrf.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			scope := RequestScope(r)
			result := manager.ValidateToken(r.Context(), scope, r.Header.Get(csrf.HeaderName), "")
			if result.IsValid {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("request rejected by csrf check",
				"path", r.URL.Path,
				"method", r.Method,
				"reason", result.Reason,
			)

			resp := models.CSRFErrorResponse{
				Error: result.Error,
				Code:  "CSRF_INVALID",
			}
			if result.NewToken != nil {
				resp.Code = "CSRF_EXPIRED"
				resp.NewToken = result.NewToken.Token
			}
			writeJSON(w, http.StatusForbidden, resp)
		})
	}
}
