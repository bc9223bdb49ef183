package company

import "errors"

var (
	// ErrCompanyNotFound is returned when an explicit company does not belong to the tenant.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrNoCompanyProvisioned is returned when a tenant has no companies at all.
	// It indicates incomplete tenant setup, not a bad request.
	ErrNoCompanyProvisioned = errors.New("no company provisioned for tenant")

	// ErrInvalidCompanyID is returned when an explicit company id cannot be parsed.
	ErrInvalidCompanyID = errors.New("invalid company id")

	// ErrUnsupportedConn is returned when a handle cannot run queries.
	ErrUnsupportedConn = errors.New("connection handle does not support queries")
)
