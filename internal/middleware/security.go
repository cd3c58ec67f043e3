package middleware

import (
	"net/http"
	"strings"

	"github.com/procflow/procql/internal/auth"
	"github.com/procflow/procql/internal/domain"
)

// Identity headers set by the gateway in front of this service. Requests
// without them run as anonymous and restricted endpoints return empty pages.
const (
	HeaderUserID = "X-User-Id"
	HeaderGroups = "X-User-Groups"
)

// SecurityContextMiddleware reads the resolved caller identity from request
// headers and stores it on the request context.
func SecurityContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		var groups []string
		for _, g := range strings.Split(r.Header.Get(HeaderGroups), ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}

		sc := domain.SecurityContext{UserID: userID, Groups: groups}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithSecurityContext(r.Context(), sc)))
	})
}
