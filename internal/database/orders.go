package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, status, notes, subtotal, tax_amount, total_amount, created_by, is_active, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TableID, &o.Status, &o.Notes, &o.Subtotal, &o.TaxAmount,
		&o.TotalAmount, &o.CreatedBy, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND is_active = true`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

type ListOrdersParams struct {
	Status    pgtype.Text
	TableID   pgtype.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE is_active = true
		  AND ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR table_id = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := q.db.Query(ctx, sql, arg.Status, arg.TableID, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListActiveOrdersByTable returns the orders keeping a table open:
// active rows in PENDING, PREPARING, or READY, oldest first.
func (q *Queries) ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	const sql = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE table_id = $1 AND is_active = true
		  AND status IN ('PENDING', 'PREPARING', 'READY')
		ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListKitchenOrders returns every active in-flight order, oldest first.
func (q *Queries) ListKitchenOrders(ctx context.Context) ([]Order, error) {
	const sql = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE is_active = true
		  AND status IN ('PENDING', 'PREPARING', 'READY')
		ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	TableID     uuid.UUID
	Status      string
	Notes       pgtype.Text
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	TotalAmount pgtype.Numeric
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		INSERT INTO orders (table_id, status, notes, subtotal, tax_amount, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.TableID, arg.Status, arg.Notes, arg.Subtotal, arg.TaxAmount, arg.TotalAmount, arg.CreatedBy))
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateOrderStatus applies a transition guarded on the expected current
// status; no row comes back when the order moved in between.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3 AND is_active = true
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.Status, arg.FromStatus))
}

type SetOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

// SetOrderStatus updates the status unconditionally. Used inside payment
// settlement where the order set was read in the same transaction.
func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.Status))
}

type UpdateOrderContentsParams struct {
	ID          uuid.UUID
	Notes       pgtype.Text
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	TotalAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderContents(ctx context.Context, arg UpdateOrderContentsParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET notes = $2, subtotal = $3, tax_amount = $4, total_amount = $5, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.Notes, arg.Subtotal, arg.TaxAmount, arg.TotalAmount))
}

func (q *Queries) SoftDeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE orders SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}

// --- Order items ---

const orderItemColumns = `id, order_id, menu_item_id, name, category_id, unit_price, quantity, notes, subtotal`

func scanOrderItem(row interface{ Scan(dest ...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID, &i.OrderID, &i.MenuItemID, &i.Name, &i.CategoryID,
		&i.UnitPrice, &i.Quantity, &i.Notes, &i.Subtotal,
	)
	return i, err
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	CategoryID uuid.UUID
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Notes      pgtype.Text
	Subtotal   pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (order_id, menu_item_id, name, category_id, unit_price, quantity, notes, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + orderItemColumns
	return scanOrderItem(q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.CategoryID,
		arg.UnitPrice, arg.Quantity, arg.Notes, arg.Subtotal))
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	const sql = `DELETE FROM order_items WHERE order_id = $1`
	_, err := q.db.Exec(ctx, sql, orderID)
	return err
}

// --- Kitchen stats ---

type KitchenStatsRow struct {
	PendingCount   int64
	PreparingCount int64
	ReadyCount     int64
	AvgPrepMinutes pgtype.Float8
}

// GetKitchenStats reports in-flight counts plus the average minutes from
// creation to delivery for orders delivered today.
func (q *Queries) GetKitchenStats(ctx context.Context) (KitchenStatsRow, error) {
	const sql = `
		SELECT
			count(*) FILTER (WHERE status = 'PENDING'),
			count(*) FILTER (WHERE status = 'PREPARING'),
			count(*) FILTER (WHERE status = 'READY'),
			avg(EXTRACT(EPOCH FROM (updated_at - created_at)) / 60)
				FILTER (WHERE status = 'DELIVERED' AND updated_at >= date_trunc('day', now()))
		FROM orders
		WHERE is_active = true`
	var s KitchenStatsRow
	err := q.db.QueryRow(ctx, sql).Scan(&s.PendingCount, &s.PreparingCount, &s.ReadyCount, &s.AvgPrepMinutes)
	return s, err
}
