package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	findTenantByIDQuery = `SELECT id, slug, name, address, status, created_at
FROM tenants WHERE id = $1`
	findTenantBySlugQuery = `SELECT id, slug, name, address, status, created_at
FROM tenants WHERE slug = $1`
)

// PostgresStore reads tenants from the control-plane database.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a control-plane store over db.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindTenant looks a tenant up by UUID or slug.
func (s *PostgresStore) FindTenant(ctx context.Context, identifier string) (*Tenant, error) {
	query, arg := findTenantBySlugQuery, any(identifier)
	if id, err := uuid.Parse(identifier); err == nil {
		query, arg = findTenantByIDQuery, id
	}

	var (
		t      Tenant
		status string
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Slug, &t.Name, &t.Address, &status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	t.Status = Status(status)
	return &t, nil
}
