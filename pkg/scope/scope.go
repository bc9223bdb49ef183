package scope

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantmux/pkg/audit"
	"github.com/dmitrymomot/tenantmux/pkg/company"
	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
	"github.com/dmitrymomot/tenantmux/pkg/pg"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

// Scope is the resolved (tenant, company) pair of a request together with
// the leased tenant database handle. Release must be called once the
// request is done with the handle.
type Scope struct {
	Tenant  *tenant.Tenant
	Company company.Company
	Signal  tenant.Signal
	Audit   *audit.Context

	lease *connmux.Lease
}

// Conn returns the tenant's database handle.
func (s *Scope) Conn() connmux.Conn {
	return s.lease.Conn()
}

// Pair returns the double scope every business operation is filtered by.
func (s *Scope) Pair() company.Scope {
	return company.ScopeOf(s.Company)
}

// Release returns the handle to the multiplexer. Safe to call more than once.
func (s *Scope) Release() {
	s.lease.Release()
}

// ReportError tells the multiplexer the handle failed, when err indicates a
// broken connection rather than a failed statement. It reports whether the
// error was forwarded.
func (s *Scope) ReportError(err error) bool {
	if !pg.IsConnectionError(err) {
		return false
	}
	s.lease.ReportError(err)
	return true
}

// ReportSuccess resets the handle's failure count.
func (s *Scope) ReportSuccess() {
	s.lease.ReportSuccess()
}

func (s *Scope) LogValue() slog.Value {
	return slog.GroupValue(
		logger.TenantID(s.Tenant.ID),
		logger.CompanyID(s.Company.ID),
		logger.Signal(string(s.Signal)),
	)
}

type contextKey struct{}

// WithScope stores the scope and its tenant and audit context in ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	ctx = tenant.WithTenant(ctx, s.Tenant)
	ctx = audit.WithContext(ctx, s.Audit)
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request's scope.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(contextKey{}).(*Scope)
	return s, ok && s != nil
}

// MustFromContext returns the request's scope or panics.
func MustFromContext(ctx context.Context) *Scope {
	s, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoScopeInContext)
	}
	return s
}

// LoggerExtractor adds the company id of the request scope to log records.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if s, ok := FromContext(ctx); ok && s.Company.ID != uuid.Nil {
			return logger.CompanyID(s.Company.ID), true
		}
		return slog.Attr{}, false
	}
}
