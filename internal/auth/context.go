package auth

import (
	"context"

	"github.com/procflow/procql/internal/domain"
)

type contextKey string

const securityContextKey contextKey = "securityContext"

// ContextWithSecurityContext returns a new context carrying the caller's
// resolved identity. Identity resolution itself happens upstream; this package
// only transports the result so no entry point reads global state.
func ContextWithSecurityContext(ctx context.Context, sc domain.SecurityContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, securityContextKey, sc)
}

// SecurityContextFromContext retrieves the caller identity from the context.
// A missing or anonymous identity returns ok=false; restricted entry points
// must then return empty results rather than falling back to unrestricted.
func SecurityContextFromContext(ctx context.Context) (domain.SecurityContext, bool) {
	if ctx == nil {
		return domain.SecurityContext{}, false
	}
	sc, ok := ctx.Value(securityContextKey).(domain.SecurityContext)
	if !ok || sc.Anonymous() {
		return domain.SecurityContext{}, false
	}
	return sc, true
}
