package scope

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantmux/pkg/audit"
	"github.com/dmitrymomot/tenantmux/pkg/company"
	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
	"github.com/dmitrymomot/tenantmux/pkg/pg"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

// DefaultCompanyHeader carries an explicit company id.
const DefaultCompanyHeader = "X-Company-ID"

// Config holds the scope layer's settings.
type Config struct {
	CompanyHeader string `env:"SCOPE_COMPANY_HEADER" envDefault:"X-Company-ID"`
}

// Invalidator drops cached tenant records. Satisfied by *tenant.Directory.
type Invalidator interface {
	Invalidate(ctx context.Context, identifiers ...string)
}

// Recorder queues audit entries. Satisfied by *audit.Recorder.
type Recorder interface {
	Record(ac *audit.Context, e audit.Entry)
}

// Option configures a Service.
type Option func(*Service)

// WithDirectory lets the service invalidate a tenant's cached record when
// its database cannot be reached, so a moved database is picked up.
func WithDirectory(d Invalidator) Option {
	return func(s *Service) {
		s.directory = d
	}
}

// WithRecorder sets the audit recorder used by Record.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithCapturer sets how the audit context is captured.
func WithCapturer(c *audit.Capturer) Option {
	return func(s *Service) {
		if c != nil {
			s.capturer = c
		}
	}
}

// WithServiceLogger sets the logger. Defaults to slog.Default().
func WithServiceLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service resolves the full request scope: tenant, database handle and
// company.
type Service struct {
	tenants   *tenant.Resolver
	mux       *connmux.Multiplexer
	companies *company.Resolver
	directory Invalidator
	recorder  Recorder
	capturer  *audit.Capturer
	logger    *slog.Logger
	header    string
}

func New(tenants *tenant.Resolver, mux *connmux.Multiplexer, companies *company.Resolver, cfg Config, opts ...Option) *Service {
	s := &Service{
		tenants:   tenants,
		mux:       mux,
		companies: companies,
		capturer:  audit.NewCapturer(),
		logger:    slog.Default(),
		header:    cfg.CompanyHeader,
	}
	if s.header == "" {
		s.header = DefaultCompanyHeader
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve establishes the scope of r. Every returned error is an *Error.
// Identification and company id parsing happen before any database work,
// and suspended tenants never reach the multiplexer.
func (s *Service) Resolve(r *http.Request) (*Scope, error) {
	ctx := r.Context()
	ac := s.capturer.Capture(r)

	res, err := s.tenants.Resolve(r)
	if err != nil {
		return nil, newError(classify(err), nil, err)
	}
	t := res.Tenant
	ac.TenantID = t.ID

	if t.Suspended() {
		return nil, newError(KindTenantSuspended, t, tenant.ErrTenantSuspended)
	}

	explicit, err := company.ParseID(r.Header.Get(s.header))
	if err != nil {
		return nil, newError(KindInvalidCompany, t, err)
	}

	lease, err := s.mux.Acquire(ctx, t.Address)
	if err != nil {
		if errors.Is(err, connmux.ErrConstructFailed) || errors.Is(err, connmux.ErrConstructTimeout) {
			s.logger.WarnContext(ctx, "tenant database unavailable",
				logger.TenantID(t.ID),
				logger.Address(t.Address),
				logger.Error(err),
			)
			if s.directory != nil {
				s.directory.Invalidate(context.WithoutCancel(ctx), t.ID.String(), t.Slug)
			}
		}
		return nil, newError(classify(err), t, err)
	}

	c, err := s.companies.Resolve(ctx, lease.Conn(), t.ID, explicit)
	if err != nil {
		kind := classify(err)
		if pg.IsConnectionError(err) {
			lease.ReportError(err)
			kind = KindUnavailable
		}
		lease.Release()
		return nil, newError(kind, t, err)
	}

	return &Scope{
		Tenant:  t,
		Company: c,
		Signal:  res.Signal,
		Audit:   ac,
		lease:   lease,
	}, nil
}

// Record queues an audit entry for the scope stored in ctx. The entry's
// company defaults to the scope's company; any other company must belong to
// the scope's tenant, otherwise the entry goes to the recorder's failure
// path. Audit failures never reach the caller.
func (s *Service) Record(ctx context.Context, e audit.Entry) {
	if s.recorder == nil {
		return
	}

	sc, ok := FromContext(ctx)
	if !ok {
		s.logger.ErrorContext(ctx, "audit entry outside of a request scope",
			logger.Alert(), slog.String("action", e.Action))
		s.recorder.Record(nil, e)
		return
	}

	switch e.CompanyID {
	case uuid.Nil:
		e.CompanyID = sc.Company.ID
	case sc.Company.ID:
	default:
		if _, err := s.companies.Resolve(ctx, sc.Conn(), sc.Tenant.ID, e.CompanyID); err != nil {
			s.logger.ErrorContext(ctx, "audit entry company outside the tenant",
				logger.Alert(),
				logger.CompanyID(e.CompanyID),
				slog.String("action", e.Action),
				logger.Error(err),
			)
			s.recorder.Record(nil, e)
			return
		}
	}
	s.recorder.Record(sc.Audit, e)
}
