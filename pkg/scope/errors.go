package scope

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantmux/pkg/company"
	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/dsn"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

// Kind classifies why a scope could not be established.
type Kind string

const (
	KindTenantNotResolved    Kind = "tenant_not_resolved"
	KindInvalidIdentifier    Kind = "invalid_identifier"
	KindTenantUnknown        Kind = "tenant_unknown"
	KindTenantSuspended      Kind = "tenant_suspended"
	KindInvalidCompany       Kind = "invalid_company"
	KindCompanyNotFound      Kind = "company_not_found"
	KindNoCompanyProvisioned Kind = "no_company_provisioned"
	KindCapacityExceeded     Kind = "capacity_exceeded"
	KindUnavailable          Kind = "unavailable"
	KindCanceled             Kind = "canceled"
	KindInternal             Kind = "internal"
)

// StatusClientClosedRequest is reported when the client went away before the
// scope was established.
const StatusClientClosedRequest = 499

// ErrNoScopeInContext is returned when a handler expects a scope that the
// middleware did not set.
var ErrNoScopeInContext = errors.New("no scope in context")

// Error is returned by Service.Resolve. It wraps the underlying package
// error, so errors.Is works against tenant, company and connmux sentinels.
type Error struct {
	Kind     Kind
	TenantID uuid.UUID
	// Address is masked.
	Address string
	Err     error
}

func newError(kind Kind, t *tenant.Tenant, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	if t != nil {
		e.TenantID = t.ID
		e.Address = dsn.Mask(t.Address)
	}
	return e
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.TenantID != uuid.Nil {
		msg += fmt.Sprintf(" tenant=%s", e.TenantID)
	}
	if e.Address != "" {
		msg += fmt.Sprintf(" address=%s", e.Address)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed if retried later.
func (e *Error) Retryable() bool {
	return e.Kind == KindCapacityExceeded || e.Kind == KindUnavailable
}

// StatusCode maps the kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindTenantNotResolved, KindInvalidIdentifier, KindInvalidCompany:
		return http.StatusBadRequest
	case KindTenantUnknown, KindCompanyNotFound:
		return http.StatusNotFound
	case KindTenantSuspended:
		return http.StatusForbidden
	case KindNoCompanyProvisioned:
		return http.StatusConflict
	case KindCapacityExceeded, KindUnavailable:
		return http.StatusServiceUnavailable
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, tenant.ErrTenantNotResolved):
		return KindTenantNotResolved
	case errors.Is(err, tenant.ErrInvalidIdentifier):
		return KindInvalidIdentifier
	case errors.Is(err, tenant.ErrTenantUnknown), errors.Is(err, tenant.ErrTenantNotFound):
		return KindTenantUnknown
	case errors.Is(err, tenant.ErrTenantSuspended):
		return KindTenantSuspended
	case errors.Is(err, company.ErrInvalidCompanyID):
		return KindInvalidCompany
	case errors.Is(err, company.ErrCompanyNotFound):
		return KindCompanyNotFound
	case errors.Is(err, company.ErrNoCompanyProvisioned):
		return KindNoCompanyProvisioned
	case errors.Is(err, connmux.ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, tenant.ErrLookupFailed),
		errors.Is(err, connmux.ErrConstructFailed),
		errors.Is(err, connmux.ErrConstructTimeout),
		errors.Is(err, connmux.ErrClosed),
		errors.Is(err, context.DeadlineExceeded):
		return KindUnavailable
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

// StatusCode maps any error returned by Resolve to an HTTP status.
func StatusCode(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	if errors.Is(err, ErrNoScopeInContext) {
		return http.StatusInternalServerError
	}
	return newError(classify(err), nil, err).StatusCode()
}
