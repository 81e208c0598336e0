package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, description, price, is_available, is_active, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...interface{}) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price,
		&m.IsAvailable, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

type ListMenuItemsParams struct {
	CategoryID    pgtype.UUID
	AvailableOnly bool
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	const sql = `
		SELECT ` + menuItemColumns + ` FROM menu_items
		WHERE is_active = true
		  AND ($1::uuid IS NULL OR category_id = $1)
		  AND ($2::bool = false OR is_available = true)
		ORDER BY name`
	rows, err := q.db.Query(ctx, sql, arg.CategoryID, arg.AvailableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	const sql = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`
	return scanMenuItem(q.db.QueryRow(ctx, sql, id))
}

type CreateMenuItemParams struct {
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	const sql = `
		INSERT INTO menu_items (category_id, name, description, price, is_available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.IsAvailable))
}

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	const sql = `
		UPDATE menu_items
		SET category_id = $2, name = $3, description = $4, price = $5, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.CategoryID, arg.Name, arg.Description, arg.Price))
}

type SetMenuItemAvailabilityParams struct {
	ID          uuid.UUID
	IsAvailable bool
}

func (q *Queries) SetMenuItemAvailability(ctx context.Context, arg SetMenuItemAvailabilityParams) (MenuItem, error) {
	const sql = `
		UPDATE menu_items
		SET is_available = $2, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.IsAvailable))
}

func (q *Queries) CountActiveItemsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	const sql = `SELECT COUNT(*) FROM menu_items WHERE category_id = $1 AND is_active = true`
	var count int64
	err := q.db.QueryRow(ctx, sql, categoryID).Scan(&count)
	return count, err
}

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE menu_items SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}
