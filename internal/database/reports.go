package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type DailySalesRow struct {
	PaymentCount int64
	OrderCount   int64
	SalesTotal   pgtype.Numeric
	TipTotal     pgtype.Numeric
}

// GetDailySales aggregates paid payments for one calendar day.
func (q *Queries) GetDailySales(ctx context.Context, day time.Time) (DailySalesRow, error) {
	const sql = `
		SELECT
			count(*),
			coalesce((SELECT count(*) FROM payment_orders po
				JOIN payments p2 ON p2.id = po.payment_id
				WHERE p2.status = 'PAID'
				  AND p2.created_at >= $1 AND p2.created_at < $1 + interval '1 day'), 0),
			coalesce(sum(total_amount), 0),
			coalesce(sum(tip_amount), 0)
		FROM payments
		WHERE status = 'PAID'
		  AND created_at >= $1 AND created_at < $1 + interval '1 day'`
	var r DailySalesRow
	err := q.db.QueryRow(ctx, sql, day).Scan(&r.PaymentCount, &r.OrderCount, &r.SalesTotal, &r.TipTotal)
	return r, err
}

type TopItemRow struct {
	Name     string
	Quantity int64
	Revenue  pgtype.Numeric
}

type ListTopItemsParams struct {
	Since time.Time
	Limit int32
}

// ListTopItems ranks menu items by quantity sold on delivered orders.
func (q *Queries) ListTopItems(ctx context.Context, arg ListTopItemsParams) ([]TopItemRow, error) {
	const sql = `
		SELECT oi.name, sum(oi.quantity), sum(oi.subtotal)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = 'DELIVERED' AND o.is_active = true AND o.created_at >= $1
		GROUP BY oi.name
		ORDER BY sum(oi.quantity) DESC
		LIMIT $2`
	rows, err := q.db.Query(ctx, sql, arg.Since, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TopItemRow
	for rows.Next() {
		var r TopItemRow
		if err := rows.Scan(&r.Name, &r.Quantity, &r.Revenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
