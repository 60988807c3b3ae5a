package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/naazbooks/storefront/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{TrustProxyHeaders: "false"}
}

func TestLogging_PreservesResponse(t *testing.T) {
	handler := Logging(testConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if rr.Body.String() != "created" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "created")
	}
	if rr.Header().Get("X-Custom") != "value" {
		t.Error("handler header was lost")
	}
}

func TestResponseWriter(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{
			name:    "default status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("x")) },
			want:    http.StatusOK,
		},
		{
			name:    "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			want:    http.StatusNotFound,
		},
		{
			name: "first WriteHeader wins",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			wrapped := newResponseWriter(rr)
			tt.handler(wrapped, httptest.NewRequest(http.MethodGet, "/", nil))

			if wrapped.statusCode != tt.want {
				t.Errorf("captured status = %d, want %d", wrapped.statusCode, tt.want)
			}
			if rr.Code != tt.want {
				t.Errorf("recorded status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
