// Package tenant identifies which isolated tenant a request belongs to.
//
// The package is built around three pieces:
//
//  1. Store - the read-only control-plane port (PostgresStore, FileStore).
//  2. Directory - a time-bounded cache of tenant records in front of the
//     Store, with request coalescing, serve-stale-on-error, negative caching
//     and an optional Redis-backed SharedCache.
//  3. Resolver - derives an identifier from the request (explicit header,
//     token claim or subdomain) in a fixed precedence order and looks it up.
//
// # Usage
//
//	dir := tenant.NewDirectory(tenant.NewPostgresStore(pool), dirCfg,
//		tenant.WithSharedCache(tenant.NewRedisCache(rdb, "")),
//	)
//	defer dir.Close()
//
//	resolver, err := tenant.NewResolver(dir, tenant.ResolverConfig{
//		BaseDomain: "example.com",
//	},
//		tenant.WithClaim(jwt.TenantClaim),
//		tenant.WithHeaderAuthorizer(jwt.IsCrossTenant),
//	)
//
//	res, err := resolver.Resolve(r)
//	switch {
//	case errors.Is(err, tenant.ErrTenantNotResolved):
//		// 400
//	case errors.Is(err, tenant.ErrTenantUnknown):
//		// 404
//	case err == nil && res.Tenant.Suspended():
//		// 403
//	}
//
// # Precedence
//
// The first signal present wins. If it names an unknown tenant the request
// fails with ErrTenantUnknown; later signals are not consulted.
//
// # Caching
//
// Records younger than DirectoryConfig.StaleAfter are served from memory.
// Older records are refreshed with one store query per identifier no matter
// how many requests are waiting. If the store fails, the previous record is
// served until it reaches DirectoryConfig.MaxAge, after which the janitor
// drops it. Unknown identifiers are remembered for DirectoryConfig.NegativeTTL.
//
// Tenant addresses may contain credentials; Tenant implements slog.LogValuer
// and masks them.
package tenant
