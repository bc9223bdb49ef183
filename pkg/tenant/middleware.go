package tenant

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

// Middleware resolves the request's tenant and adds it to the context.
// Requests without a resolvable tenant are rejected, as are suspended
// tenants unless WithAllowSuspended is set. Routes that also need a
// database handle use the scope middleware instead.
func Middleware(resolver *Resolver, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler: defaultErrorHandler,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			res, err := resolver.Resolve(r)
			if err != nil {
				cfg.logger.DebugContext(r.Context(), "tenant resolution failed", logger.Error(err))
				cfg.errorHandler(w, r, err)
				return
			}
			if res.Tenant.Suspended() && !cfg.allowSuspended {
				cfg.errorHandler(w, r, ErrTenantSuspended)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), res.Tenant)))
		})
	}
}

// RequireTenant ensures a tenant is present in the context.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
