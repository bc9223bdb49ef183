// Package jwt verifies identity tokens with github.com/golang-jwt/jwt/v5.
//
// Tokens are HS256 signed and carry the registered claims plus the tenant
// claim "tid" and the "cross_tenant" operator flag. Middleware verifies the
// bearer token and stores the Claims in the request context; TenantClaim and
// IsCrossTenant adapt those claims to the tenant resolver:
//
//	resolver, err := tenant.NewResolver(dir, cfg,
//		tenant.WithClaim(jwt.TenantClaim),
//		tenant.WithHeaderAuthorizer(jwt.IsCrossTenant),
//	)
package jwt
