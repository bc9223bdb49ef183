// Package company resolves the company sub-scope a request operates under.
//
// Every business entity is keyed by a (tenant, company) Scope. A request may
// name a company explicitly; otherwise the tenant's default company is used.
// The default is the earliest-created company (ties broken by id) and is
// memoised per tenant so it stays the same across requests even when more
// companies are added later. A tenant with no companies fails with
// ErrNoCompanyProvisioned, which callers must keep distinct from
// ErrCompanyNotFound.
//
// Companies live in the tenant's own database, so the Lister receives the
// leased connmux handle:
//
//	c, err := resolver.Resolve(ctx, lease.Conn(), tenant.ID, explicitID)
package company
