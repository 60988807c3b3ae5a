package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/naazbooks/storefront/internal/storage"
)

const (
	// ClientCookieName identifies a client across browser sessions.
	ClientCookieName = "naaz_client"

	// TabCookieName identifies one browser session of a client. It carries
	// no Max-Age so the browser drops it when the session ends.
	TabCookieName = "naaz_tab"

	clientCookieMaxAge = 365 * 24 * 60 * 60
)

type contextKey string

const scopeContextKey contextKey = "client_scope"

// ClientScope assigns every request the storage scope of its client,
// issuing the client and tab cookies when they are missing or malformed.
// When base is a storage.Toucher the scope is marked as used so idle
// scopes can be swept.
func ClientScope(base storage.Store, secure bool) func(http.Handler) http.Handler {
	toucher, _ := base.(storage.Toucher)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := cookieID(r, ClientCookieName)
			if clientID == "" {
				clientID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID,
					Path:     "/",
					MaxAge:   clientCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			tabID := cookieID(r, TabCookieName)
			if tabID == "" {
				tabID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     TabCookieName,
					Value:    tabID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}

			if toucher != nil {
				toucher.Touch(clientID, tabID)
			}
			scope := storage.NewScope(base, clientID, tabID)
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// cookieID returns the value of cookie name when it holds a UUID.
func cookieID(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope storage.Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, scope)
}

// ScopeFromContext returns the client scope set by ClientScope.
func ScopeFromContext(ctx context.Context) (storage.Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey).(storage.Scope)
	return scope, ok
}

// RequestScope returns the scope of r, or a scope whose stores are
// unavailable when none was assigned.
func RequestScope(r *http.Request) storage.Scope {
	if scope, ok := ScopeFromContext(r.Context()); ok {
		return scope
	}
	return storage.Scope{Local: storage.Unavailable(), Session: storage.Unavailable()}
}
