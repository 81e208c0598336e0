package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const auditColumns = `id, user_id, action, entity_type, entity_id, detail, created_at`

func scanAuditEntry(row interface{ Scan(dest ...interface{}) error }) (AuditEntry, error) {
	var e AuditEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt)
	return e, err
}

type CreateAuditEntryParams struct {
	UserID     uuid.UUID
	Action     string
	EntityType string
	EntityID   pgtype.Text
	Detail     pgtype.Text
}

func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (AuditEntry, error) {
	const sql = `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + auditColumns
	return scanAuditEntry(q.db.QueryRow(ctx, sql, arg.UserID, arg.Action, arg.EntityType, arg.EntityID, arg.Detail))
}

type ListAuditEntriesParams struct {
	UserID    pgtype.UUID
	Action    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListAuditEntries(ctx context.Context, arg ListAuditEntriesParams) ([]AuditEntry, error) {
	const sql = `
		SELECT ` + auditColumns + ` FROM audit_log
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR action = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := q.db.Query(ctx, sql, arg.UserID, arg.Action, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
