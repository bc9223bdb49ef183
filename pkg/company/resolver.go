package company

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantmux/pkg/cache"
	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

// DefaultCacheSize bounds the number of memoised tenant defaults.
const DefaultCacheSize = 10000

// Option configures a Resolver.
type Option func(*Resolver)

// WithCacheSize sets how many tenant defaults are memoised.
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.defaults = cache.NewLRU[uuid.UUID, Company](n)
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// Resolver picks the company a request operates under.
//
// The default company of a tenant is its earliest-created company, ties
// broken by id. Once chosen the default is memoised, so companies added
// later never change it. The memo is checked against the tenant database on
// every use and re-chosen once the company has been removed.
type Resolver struct {
	lister   Lister
	defaults *cache.LRU[uuid.UUID, Company]
	log      *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(lister Lister, opts ...Option) *Resolver {
	r := &Resolver{
		lister:   lister,
		defaults: cache.NewLRU[uuid.UUID, Company](DefaultCacheSize),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the explicit company when one is given and belongs to the
// tenant, or the tenant's default company otherwise.
func (r *Resolver) Resolve(ctx context.Context, conn connmux.Conn, tenantID, explicit uuid.UUID) (Company, error) {
	if explicit != uuid.Nil {
		c, err := r.lister.GetCompany(ctx, conn, tenantID, explicit)
		if err != nil {
			return Company{}, err
		}
		if c.TenantID != tenantID {
			return Company{}, ErrCompanyNotFound
		}
		return c, nil
	}
	return r.Default(ctx, conn, tenantID)
}

// Default returns the tenant's default company.
func (r *Resolver) Default(ctx context.Context, conn connmux.Conn, tenantID uuid.UUID) (Company, error) {
	if c, ok := r.defaults.Get(tenantID); ok {
		_, err := r.lister.GetCompany(ctx, conn, tenantID, c.ID)
		switch {
		case err == nil:
			return c, nil
		case errors.Is(err, ErrCompanyNotFound):
			r.log.InfoContext(ctx, "default company removed",
				logger.TenantID(tenantID),
				logger.CompanyID(c.ID),
			)
			r.Forget(tenantID)
		default:
			return Company{}, fmt.Errorf("get company: %w", err)
		}
	}

	companies, err := r.lister.ListCompanies(ctx, conn, tenantID)
	if err != nil {
		return Company{}, fmt.Errorf("list companies: %w", err)
	}
	c, ok := Earliest(companies)
	if !ok {
		r.log.WarnContext(ctx, "tenant has no company", logger.TenantID(tenantID))
		return Company{}, ErrNoCompanyProvisioned
	}

	// Concurrent first calls may both list; both pick the same company.
	r.defaults.Put(tenantID, c)
	return c, nil
}

// Forget drops the memoised default of a tenant.
func (r *Resolver) Forget(tenantID uuid.UUID) {
	r.defaults.Remove(tenantID)
}

// Earliest applies the default-company ordering rule: the lowest CreatedAt
// wins and ties go to the lowest id.
func Earliest(companies []Company) (Company, bool) {
	if len(companies) == 0 {
		return Company{}, false
	}
	return slices.MinFunc(companies, func(a, b Company) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	}), true
}

// ParseID parses an explicit company id. An empty string yields uuid.Nil.
func ParseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidCompanyID, raw)
	}
	return id, nil
}
