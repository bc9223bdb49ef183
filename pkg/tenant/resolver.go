package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

// ResolverConfig selects which request signals identify a tenant and in
// which order they are consulted.
type ResolverConfig struct {
	// Precedence is the fixed order in which signals are consulted.
	Precedence []Signal `env:"TENANT_SIGNAL_PRECEDENCE" envSeparator:"," envDefault:"header,claim,subdomain"`
	// BaseDomain is the domain tenant subdomains live under ("example.com").
	BaseDomain string `env:"TENANT_BASE_DOMAIN"`
	// Header is the explicit tenant header name.
	Header string `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
}

// DefaultPrecedence is header, then token claim, then subdomain.
func DefaultPrecedence() []Signal {
	return []Signal{SignalHeader, SignalClaim, SignalSubdomain}
}

// Lookuper finds tenants by UUID or slug. *Directory implements it.
type Lookuper interface {
	Lookup(ctx context.Context, identifier string) (*Tenant, error)
}

// Resolution is the outcome of resolving a request.
type Resolution struct {
	Tenant *Tenant
	// Signal is the request signal that identified the tenant.
	Signal Signal
	// Identifier is the raw value the signal carried.
	Identifier string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHeaderAuthorizer decides which callers may name a tenant via the
// explicit header. Without it the header signal is always ignored.
func WithHeaderAuthorizer(authorize func(r *http.Request) bool) ResolverOption {
	return func(r *Resolver) {
		r.authorize = authorize
	}
}

// WithClaim supplies the verified token's tenant claim. Without it the claim
// signal is never present.
func WithClaim(claim func(r *http.Request) (string, bool)) ResolverOption {
	return func(r *Resolver) {
		r.extractors[SignalClaim] = NewClaimExtractor(claim)
	}
}

// WithExtractor replaces the extractor used for a signal.
func WithExtractor(signal Signal, ex Extractor) ResolverOption {
	return func(r *Resolver) {
		r.extractors[signal] = ex
	}
}

// WithResolverLogger sets the logger. Defaults to slog.Default().
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// Resolver maps requests to tenants.
//
// Signals are consulted in the configured order and the first one present
// decides the tenant. Later signals are never consulted, even when the
// winning identifier turns out to be unknown, so a client is never silently
// served a different tenant than the one it named.
type Resolver struct {
	directory  Lookuper
	order      []Signal
	extractors map[Signal]Extractor
	authorize  func(r *http.Request) bool
	log        *slog.Logger
}

// NewResolver creates a Resolver. It fails with ErrInvalidPrecedence for an
// empty order, a repeated signal or a signal without an extractor.
func NewResolver(directory Lookuper, cfg ResolverConfig, opts ...ResolverOption) (*Resolver, error) {
	if directory == nil {
		return nil, errors.New("tenant: nil directory")
	}
	order := cfg.Precedence
	if len(order) == 0 {
		order = DefaultPrecedence()
	}

	r := &Resolver{
		directory: directory,
		order:     append([]Signal(nil), order...),
		extractors: map[Signal]Extractor{
			SignalSubdomain: NewSubdomainExtractor(cfg.BaseDomain),
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, ok := r.extractors[SignalHeader]; !ok {
		r.extractors[SignalHeader] = NewHeaderExtractor(cfg.Header, r.authorize)
	}
	if _, ok := r.extractors[SignalClaim]; !ok {
		r.extractors[SignalClaim] = NewClaimExtractor(nil)
	}

	seen := make(map[Signal]bool, len(r.order))
	for _, s := range r.order {
		if seen[s] {
			return nil, fmt.Errorf("%w: %q repeated", ErrInvalidPrecedence, s)
		}
		seen[s] = true
		if r.extractors[s] == nil {
			return nil, fmt.Errorf("%w: unknown signal %q", ErrInvalidPrecedence, s)
		}
	}
	return r, nil
}

// Precedence returns the signal order in use.
func (r *Resolver) Precedence() []Signal {
	return append([]Signal(nil), r.order...)
}

// Resolve identifies the request's tenant.
//
// It returns ErrTenantNotResolved when no signal is present, ErrTenantUnknown
// when the winning identifier matches no tenant, ErrInvalidIdentifier for a
// malformed identifier and ErrLookupFailed when the control plane is down.
// Suspended tenants resolve successfully; callers check Tenant.Suspended.
func (r *Resolver) Resolve(req *http.Request) (*Resolution, error) {
	ctx := req.Context()
	for _, sig := range r.order {
		raw, err := r.extractors[sig].Extract(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s signal: %w", ErrInvalidIdentifier, sig, err)
		}
		if raw == "" {
			continue
		}

		t, err := r.directory.Lookup(ctx, raw)
		switch {
		case err == nil:
			r.log.DebugContext(ctx, "tenant resolved",
				logger.Signal(string(sig)),
				logger.TenantID(t.ID),
			)
			return &Resolution{Tenant: t, Signal: sig, Identifier: raw}, nil
		case errors.Is(err, ErrTenantNotFound):
			return nil, fmt.Errorf("%w: %q from %s", ErrTenantUnknown, raw, sig)
		case errors.Is(err, ErrInvalidIdentifier):
			return nil, fmt.Errorf("%w: %q from %s", ErrInvalidIdentifier, raw, sig)
		default:
			return nil, err
		}
	}
	return nil, ErrTenantNotResolved
}
