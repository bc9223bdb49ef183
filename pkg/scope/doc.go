// Package scope ties tenant resolution, the connection multiplexer and
// company resolution into one per-request step.
//
// Service.Resolve captures the audit context, resolves the tenant, rejects
// suspended tenants, leases the tenant's database handle and resolves the
// company, in that order. Errors are *Error values carrying a Kind that maps
// to an HTTP status; resource errors are Retryable. Middleware stores the
// Scope in the request context and releases the lease after the handler
// returns.
//
//	r.Use(scope.Middleware(svc, scope.WithSkipPaths("/healthz", "/metrics")))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		sc := scope.MustFromContext(r.Context())
//		pool := sc.Conn().(*pgxpool.Pool)
//		if _, err := pool.Exec(r.Context(), q, sc.Pair().CompanyID); err != nil {
//			sc.ReportError(err)
//		}
//		svc.Record(r.Context(), audit.Entry{Action: "invoice.create"})
//	}
package scope
