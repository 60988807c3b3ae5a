package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/utils"
)

// ClientIP returns the client address of r, honoring proxy headers only as
// far as cfg trusts them.
func ClientIP(r *http.Request, cfg *config.Config) string {
	return utils.GetClientIPWithTrust(r, cfg.TrustProxyHeaders, cfg.TrustedProxyIPs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}
