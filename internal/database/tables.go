package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, label, capacity, section, status, is_active, created_at, updated_at`

func scanTable(row interface{ Scan(dest ...interface{}) error }) (Table, error) {
	var t Table
	err := row.Scan(
		&t.ID, &t.Label, &t.Capacity, &t.Section, &t.Status,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	const sql = `SELECT ` + tableColumns + ` FROM tables WHERE is_active = true ORDER BY label`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 AND is_active = true`
	return scanTable(q.db.QueryRow(ctx, sql, id))
}

type CreateTableParams struct {
	Label    string
	Capacity int32
	Section  pgtype.Text
	Status   string
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	const sql = `
		INSERT INTO tables (label, capacity, section, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.Label, arg.Capacity, arg.Section, arg.Status))
}

type UpdateTableParams struct {
	ID       uuid.UUID
	Label    string
	Capacity int32
	Section  pgtype.Text
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET label = $2, capacity = $3, section = $4, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.Label, arg.Capacity, arg.Section))
}

type UpdateTableStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = $2, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.Status))
}

func (q *Queries) SoftDeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE tables SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}

func (q *Queries) CountTables(ctx context.Context) (int64, error) {
	const sql = `SELECT count(*) FROM tables WHERE is_active = true`
	var n int64
	err := q.db.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

// CountActiveOrdersByTable counts orders that keep a table occupied:
// active rows in PENDING, PREPARING, or READY.
func (q *Queries) CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	const sql = `
		SELECT count(*) FROM orders
		WHERE table_id = $1 AND is_active = true
		  AND status IN ('PENDING', 'PREPARING', 'READY')`
	var n int64
	err := q.db.QueryRow(ctx, sql, tableID).Scan(&n)
	return n, err
}
