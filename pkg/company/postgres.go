package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/tenantmux/pkg/connmux"
)

// Querier is satisfied by *pgxpool.Pool handles.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	listCompaniesQuery = `SELECT id, tenant_id, name, created_at
FROM companies WHERE tenant_id = $1
ORDER BY created_at, id`
	getCompanyQuery = `SELECT id, tenant_id, name, created_at
FROM companies WHERE tenant_id = $1 AND id = $2`
)

// PostgresLister reads the companies table of a tenant database.
type PostgresLister struct{}

// NewPostgresLister creates a Lister for pgx handles.
func NewPostgresLister() *PostgresLister {
	return &PostgresLister{}
}

func (PostgresLister) ListCompanies(ctx context.Context, conn connmux.Conn, tenantID uuid.UUID) ([]Company, error) {
	q, err := querier(conn)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, listCompaniesQuery, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	companies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Company, error) {
		return scanCompany(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan companies: %w", err)
	}
	return companies, nil
}

func (PostgresLister) GetCompany(ctx context.Context, conn connmux.Conn, tenantID, companyID uuid.UUID) (Company, error) {
	q, err := querier(conn)
	if err != nil {
		return Company{}, err
	}
	c, err := scanCompany(q.QueryRow(ctx, getCompanyQuery, tenantID, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrCompanyNotFound
	}
	if err != nil {
		return Company{}, fmt.Errorf("query company: %w", err)
	}
	return c, nil
}

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt)
	return c, err
}

func querier(conn connmux.Conn) (Querier, error) {
	q, ok := conn.(Querier)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedConn, conn)
	}
	return q, nil
}
