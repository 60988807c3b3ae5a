package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/naazbooks/storefront/internal/cart"
	"github.com/naazbooks/storefront/internal/catalog"
	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/csrf"
	"github.com/naazbooks/storefront/internal/metrics"
	"github.com/naazbooks/storefront/internal/middleware"
	"github.com/naazbooks/storefront/internal/ratelimit"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/session"
	"github.com/naazbooks/storefront/internal/storage"
)

// Dependencies are the services behind the HTTP API.
type Dependencies struct {
	Config      *config.Config
	Repos       *repository.Repositories
	ClientStore storage.Store // Base store of the per-client scopes
	CSRF        *csrf.Manager
	Sessions    *session.Tracker
	Assertions  *session.AssertionVerifier // nil disables sign-in
	RateLimits  *ratelimit.Middleware
	Carts       *cart.Service
	Catalog     *catalog.Catalog
	AuditQueue  QueueSizer // Optional
	// HealthChecks are reported as /health components after the database.
	HealthChecks []ComponentChecker
	StartTime    time.Time
}

// NewRouter builds the API and wraps it in the middleware chain: recovery,
// logging, metrics and security headers on every route, then client scope,
// rate limiting and CSRF on /api routes.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := mux.NewRouter()

	r.HandleFunc("/health", HealthHandler(deps.Repos.Health, deps.Repos.DatabaseType, deps.StartTime, deps.AuditQueue, deps.HealthChecks...)).Methods(http.MethodGet)
	r.HandleFunc("/health/live", HealthLivenessHandler(deps.Repos.Health)).Methods(http.MethodGet)
	r.Handle("/metrics", MetricsHandler(deps.Repos.Health)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(
		middleware.ClientScope(deps.ClientStore, cfg.HTTPSEnabled),
		middleware.RateLimit(deps.RateLimits, cfg, middleware.DefaultAction, UserFromSession(deps.Sessions)),
		middleware.CSRF(deps.CSRF),
	)

	api.HandleFunc("/csrf-token", CSRFTokenHandler(deps.CSRF)).Methods(http.MethodGet)

	api.HandleFunc("/sessions", CreateSessionHandler(deps.Sessions, deps.Carts, deps.CSRF, deps.Assertions, cfg)).Methods(http.MethodPost)
	api.HandleFunc("/sessions/current", CurrentSessionHandler(deps.Sessions)).Methods(http.MethodGet)
	api.HandleFunc("/sessions/current/renew", RenewSessionHandler(deps.Sessions)).Methods(http.MethodPost)
	api.HandleFunc("/sessions/current", DestroyCurrentSessionHandler(deps.Sessions, deps.CSRF)).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/sessions", UserSessionsHandler(deps.Sessions)).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/sessions", DestroyUserSessionsHandler(deps.Sessions)).Methods(http.MethodDelete)

	api.HandleFunc("/products", ListProductsHandler(deps.Catalog)).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", GetProductHandler(deps.Catalog)).Methods(http.MethodGet)

	api.HandleFunc("/cart", GetCartHandler(deps.Carts, deps.Sessions)).Methods(http.MethodGet)
	api.HandleFunc("/cart", ClearCartHandler(deps.Carts, deps.Sessions)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", AddCartItemHandler(deps.Carts, deps.Sessions)).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productID:[0-9]+}", UpdateCartItemHandler(deps.Carts, deps.Sessions)).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{productID:[0-9]+}", RemoveCartItemHandler(deps.Carts, deps.Sessions)).Methods(http.MethodDelete)

	api.HandleFunc("/rate-limit/{action}", RateLimitStatusHandler(deps.RateLimits, cfg, deps.Sessions)).Methods(http.MethodGet)
	api.HandleFunc("/rate-limit/{action}", RateLimitResetHandler(deps.RateLimits, cfg, deps.Sessions)).Methods(http.MethodDelete)

	var handler http.Handler = r
	handler = middleware.SecurityHeaders(cfg.HTTPSEnabled)(handler)
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(cfg)(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}
