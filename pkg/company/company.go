package company

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantmux/pkg/connmux"
)

// Company is a sub-organization inside one tenant.
type Company struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Scope is the (tenant, company) pair every business entity is keyed by.
// It is built from a resolved Company, so the pair is always consistent.
type Scope struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	CompanyID uuid.UUID `json:"company_id"`
}

// ScopeOf returns the scope pair of c.
func ScopeOf(c Company) Scope {
	return Scope{TenantID: c.TenantID, CompanyID: c.ID}
}

// IsZero reports whether the scope is unset.
func (s Scope) IsZero() bool {
	return s.TenantID == uuid.Nil || s.CompanyID == uuid.Nil
}

// Lister reads companies from a tenant's own database through its handle.
type Lister interface {
	// ListCompanies returns the tenant's companies ordered by creation time.
	ListCompanies(ctx context.Context, conn connmux.Conn, tenantID uuid.UUID) ([]Company, error)
	// GetCompany returns ErrCompanyNotFound if the company does not exist
	// or belongs to another tenant.
	GetCompany(ctx context.Context, conn connmux.Conn, tenantID, companyID uuid.UUID) (Company, error)
}
