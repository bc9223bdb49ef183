package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DefaultTable is the control-plane table audit events are copied into.
const DefaultTable = "audit_events"

var eventColumns = []string{
	"id", "tenant_id", "company_id", "actor_id", "action",
	"resource_type", "resource_id", "before", "after", "status",
	"error", "request_id", "ip", "user_agent", "requested_at", "created_at",
}

// Copier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// PostgresStorage bulk-copies batches into an append-only table.
type PostgresStorage struct {
	db    Copier
	table pgx.Identifier
}

// NewPostgresStorage writes into table, or DefaultTable when table is empty.
func NewPostgresStorage(db Copier, table string) *PostgresStorage {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStorage{db: db, table: pgx.Identifier{table}}
}

func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	n, err := s.db.CopyFrom(ctx, s.table, eventColumns, pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
		ev := events[i]
		return []any{
			ev.ID, ev.TenantID, ev.CompanyID, ev.ActorID, ev.Action,
			ev.ResourceType, ev.ResourceID, jsonColumn(ev.Before), jsonColumn(ev.After), string(ev.Status),
			ev.Error, ev.RequestID, ev.IP, ev.UserAgent, ev.RequestedAt, ev.CreatedAt,
		}, nil
	}))
	if err != nil {
		return fmt.Errorf("copy audit events: %w", err)
	}
	if n != int64(len(events)) {
		return fmt.Errorf("copy audit events: wrote %d of %d rows", n, len(events))
	}
	return nil
}

func jsonColumn(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
