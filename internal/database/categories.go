package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, description, sort_order, is_active, created_at`

func scanCategory(row interface{ Scan(dest ...interface{}) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	const sql = `SELECT ` + categoryColumns + ` FROM categories WHERE is_active = true ORDER BY sort_order, name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	const sql = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND is_active = true`
	return scanCategory(q.db.QueryRow(ctx, sql, id))
}

type CreateCategoryParams struct {
	Name        string
	Description pgtype.Text
	SortOrder   int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	const sql = `
		INSERT INTO categories (name, description, sort_order)
		VALUES ($1, $2, $3)
		RETURNING ` + categoryColumns
	return scanCategory(q.db.QueryRow(ctx, sql, arg.Name, arg.Description, arg.SortOrder))
}

type UpdateCategoryParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	SortOrder   int32
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	const sql = `
		UPDATE categories
		SET name = $2, description = $3, sort_order = $4
		WHERE id = $1 AND is_active = true
		RETURNING ` + categoryColumns
	return scanCategory(q.db.QueryRow(ctx, sql, arg.ID, arg.Name, arg.Description, arg.SortOrder))
}

func (q *Queries) SoftDeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE categories SET is_active = false
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}
