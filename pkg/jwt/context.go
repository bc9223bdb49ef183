package jwt

import (
	"context"
	"net/http"
)

type claimsContextKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// ClaimsFromContext returns the verified claims of the request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return c, ok && c != nil
}

// TenantClaim reads the tenant claim of a verified token. It plugs into
// the tenant resolver's claim signal.
func TenantClaim(r *http.Request) (string, bool) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok || c.TenantID == "" {
		return "", false
	}
	return c.TenantID, true
}

// IsCrossTenant reports whether the verified identity may name a tenant
// explicitly. It plugs into the tenant resolver's header authorizer.
func IsCrossTenant(r *http.Request) bool {
	c, ok := ClaimsFromContext(r.Context())
	return ok && c.CrossTenant
}

// Subject returns the verified subject, or "" for anonymous requests.
func Subject(r *http.Request) string {
	if c, ok := ClaimsFromContext(r.Context()); ok {
		return c.Subject
	}
	return ""
}
