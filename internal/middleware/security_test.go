package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/procflow/procql/internal/auth"
)

func TestSecurityContextMiddlewareParsesHeaders(t *testing.T) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, ok := auth.SecurityContextFromContext(r.Context())
		if !ok {
			t.Fatalf("expected a security context on the request")
		}
		if sc.UserID != "alice" {
			t.Fatalf("expected user alice, got %q", sc.UserID)
		}
		if len(sc.Groups) != 2 || sc.Groups[0] != "finance" || sc.Groups[1] != "audit" {
			t.Fatalf("unexpected groups: %v", sc.Groups)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search", nil)
	req.Header.Set(HeaderUserID, "alice")
	req.Header.Set(HeaderGroups, "finance, audit, ")
	SecurityContextMiddleware(handler).ServeHTTP(httptest.NewRecorder(), req)
}

func TestSecurityContextMiddlewareWithoutIdentity(t *testing.T) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.SecurityContextFromContext(r.Context()); ok {
			t.Fatalf("expected no security context without identity headers")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search", nil)
	SecurityContextMiddleware(handler).ServeHTTP(httptest.NewRecorder(), req)
}
