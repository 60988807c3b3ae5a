package handlers

import (
	"net/http"

	"github.com/naazbooks/storefront/internal/csrf"
	"github.com/naazbooks/storefront/internal/middleware"
	"github.com/naazbooks/storefront/internal/models"
)

// CSRFTokenHandler returns the client's current token, issuing one when
// none is stored or the stored one expired.
func CSRFTokenHandler(manager *csrf.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := manager.GetToken(r.Context(), middleware.RequestScope(r))

		w.Header().Set("Cache-Control", "no-store")
		sendJSON(w, http.StatusOK, models.CSRFTokenResponse{
			Token:     token.Token,
			ExpiresAt: token.ExpiresAt,
			Header:    csrf.HeaderName,
		})
	}
}
