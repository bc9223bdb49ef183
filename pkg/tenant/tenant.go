package tenant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantmux/pkg/dsn"
)

// Status is the activation status of a tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is a control-plane record describing one isolated customer and the
// dedicated database it lives in.
type Tenant struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Slug string    `json:"slug" yaml:"slug"`
	Name string    `json:"name" yaml:"name"`
	// Address is the tenant database's connection address. It is opaque to
	// callers and may carry credentials, so it is only ever logged masked.
	Address   string    `json:"address" yaml:"address"`
	Status    Status    `json:"status" yaml:"status"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Suspended reports whether the tenant must be rejected as suspended.
func (t *Tenant) Suspended() bool {
	return t != nil && t.Status == StatusSuspended
}

// LogValue implements slog.LogValuer so a Tenant can be logged directly
// without leaking credentials.
func (t *Tenant) LogValue() slog.Value {
	if t == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String("id", t.ID.String()),
		slog.String("slug", t.Slug),
		slog.String("status", string(t.Status)),
		slog.String("address", dsn.Mask(t.Address)),
	)
}

// Store is the read-only control-plane port.
type Store interface {
	// FindTenant looks a tenant up by UUID or slug.
	// Returns ErrTenantNotFound if no tenant matches the identifier.
	FindTenant(ctx context.Context, identifier string) (*Tenant, error)
}

// StoreFunc adapts an ordinary function to Store.
type StoreFunc func(ctx context.Context, identifier string) (*Tenant, error)

// FindTenant calls f.
func (f StoreFunc) FindTenant(ctx context.Context, identifier string) (*Tenant, error) {
	return f(ctx, identifier)
}

// Entry is a directory cache entry. A nil Tenant records that the
// identifier is known not to exist.
type Entry struct {
	Tenant    *Tenant   `json:"tenant,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
