package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, table_id, method, subtotal, tax_amount, tip_amount, tip_percent, tip_custom, total_amount, is_split, share_count, shares, status, processed_by, created_at`

func scanPayment(row interface{ Scan(dest ...interface{}) error }) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.TableID, &p.Method, &p.Subtotal, &p.TaxAmount,
		&p.TipAmount, &p.TipPercent, &p.TipCustom, &p.TotalAmount,
		&p.IsSplit, &p.ShareCount, &p.Shares, &p.Status, &p.ProcessedBy, &p.CreatedAt,
	)
	return p, err
}

type CreatePaymentParams struct {
	TableID     uuid.UUID
	Method      string
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	TipAmount   pgtype.Numeric
	TipPercent  pgtype.Numeric
	TipCustom   bool
	TotalAmount pgtype.Numeric
	IsSplit     bool
	ShareCount  pgtype.Int4
	Shares      []byte
	Status      string
	ProcessedBy uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	const sql = `
		INSERT INTO payments (table_id, method, subtotal, tax_amount, tip_amount, tip_percent, tip_custom,
			total_amount, is_split, share_count, shares, status, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + paymentColumns
	return scanPayment(q.db.QueryRow(ctx, sql,
		arg.TableID, arg.Method, arg.Subtotal, arg.TaxAmount, arg.TipAmount, arg.TipPercent,
		arg.TipCustom, arg.TotalAmount, arg.IsSplit, arg.ShareCount, arg.Shares, arg.Status, arg.ProcessedBy))
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	const sql = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(q.db.QueryRow(ctx, sql, id))
}

type ListPaymentsParams struct {
	Method    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	const sql = `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE ($1::text IS NULL OR method = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := q.db.Query(ctx, sql, arg.Method, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type PaymentTotalsParams struct {
	Method    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type PaymentTotalsRow struct {
	PaymentCount int64
	SalesTotal   pgtype.Numeric
	TipTotal     pgtype.Numeric
}

// GetPaymentTotals aggregates PAID payments matching the same filters as
// ListPayments, ignoring pagination.
func (q *Queries) GetPaymentTotals(ctx context.Context, arg PaymentTotalsParams) (PaymentTotalsRow, error) {
	const sql = `
		SELECT count(*),
		       COALESCE(sum(total_amount), 0),
		       COALESCE(sum(tip_amount), 0)
		FROM payments
		WHERE status = 'PAID'
		  AND ($1::text IS NULL OR method = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)`
	var row PaymentTotalsRow
	err := q.db.QueryRow(ctx, sql, arg.Method, arg.StartDate, arg.EndDate).
		Scan(&row.PaymentCount, &row.SalesTotal, &row.TipTotal)
	return row, err
}

type AddPaymentOrderParams struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
}

func (q *Queries) AddPaymentOrder(ctx context.Context, arg AddPaymentOrderParams) error {
	const sql = `INSERT INTO payment_orders (payment_id, order_id) VALUES ($1, $2)`
	_, err := q.db.Exec(ctx, sql, arg.PaymentID, arg.OrderID)
	return err
}

func (q *Queries) ListPaymentOrderIDs(ctx context.Context, paymentID uuid.UUID) ([]uuid.UUID, error) {
	const sql = `SELECT order_id FROM payment_orders WHERE payment_id = $1`
	rows, err := q.db.Query(ctx, sql, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type UpdatePaymentStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	const sql = `
		UPDATE payments SET status = $2
		WHERE id = $1
		RETURNING ` + paymentColumns
	return scanPayment(q.db.QueryRow(ctx, sql, arg.ID, arg.Status))
}
