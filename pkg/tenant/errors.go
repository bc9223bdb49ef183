package tenant

import "errors"

var (
	// ErrTenantNotFound is returned by a Store when no tenant matches.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidIdentifier is returned when the identifier format is invalid.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrTenantNotResolved is returned when a request carries no tenant signal.
	ErrTenantNotResolved = errors.New("tenant not resolved")

	// ErrTenantUnknown is returned when a request names a tenant that does not exist.
	ErrTenantUnknown = errors.New("unknown tenant")

	// ErrTenantSuspended is returned when the resolved tenant is suspended.
	ErrTenantSuspended = errors.New("tenant is suspended")

	// ErrLookupFailed is returned when the control plane cannot be reached
	// and no cached record is available.
	ErrLookupFailed = errors.New("tenant lookup failed")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrInvalidPrecedence is returned for an unknown or repeated signal in
	// the resolution order.
	ErrInvalidPrecedence = errors.New("invalid tenant signal precedence")
)
