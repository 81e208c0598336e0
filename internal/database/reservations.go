package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, table_id, customer_name, customer_phone, party_size, reserved_at, status, notes, created_by, created_at, updated_at`

func scanReservation(row interface{ Scan(dest ...interface{}) error }) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID, &r.TableID, &r.CustomerName, &r.CustomerPhone, &r.PartySize,
		&r.ReservedAt, &r.Status, &r.Notes, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

type ListReservationsParams struct {
	Status    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

func (q *Queries) ListReservations(ctx context.Context, arg ListReservationsParams) ([]Reservation, error) {
	const sql = `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::timestamptz IS NULL OR reserved_at >= $2)
		  AND ($3::timestamptz IS NULL OR reserved_at < $3)
		ORDER BY reserved_at`
	rows, err := q.db.Query(ctx, sql, arg.Status, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (q *Queries) GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	const sql = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(q.db.QueryRow(ctx, sql, id))
}

type CreateReservationParams struct {
	TableID       uuid.UUID
	CustomerName  string
	CustomerPhone pgtype.Text
	PartySize     int32
	ReservedAt    time.Time
	Status        string
	Notes         pgtype.Text
	CreatedBy     uuid.UUID
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	const sql = `
		INSERT INTO reservations (table_id, customer_name, customer_phone, party_size, reserved_at, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + reservationColumns
	return scanReservation(q.db.QueryRow(ctx, sql,
		arg.TableID, arg.CustomerName, arg.CustomerPhone, arg.PartySize,
		arg.ReservedAt, arg.Status, arg.Notes, arg.CreatedBy))
}

type UpdateReservationParams struct {
	ID            uuid.UUID
	CustomerName  string
	CustomerPhone pgtype.Text
	PartySize     int32
	ReservedAt    time.Time
	Notes         pgtype.Text
}

func (q *Queries) UpdateReservation(ctx context.Context, arg UpdateReservationParams) (Reservation, error) {
	const sql = `
		UPDATE reservations
		SET customer_name = $2, customer_phone = $3, party_size = $4, reserved_at = $5, notes = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + reservationColumns
	return scanReservation(q.db.QueryRow(ctx, sql,
		arg.ID, arg.CustomerName, arg.CustomerPhone, arg.PartySize, arg.ReservedAt, arg.Notes))
}

type UpdateReservationStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateReservationStatus is guarded on the expected current status.
func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) (Reservation, error) {
	const sql = `
		UPDATE reservations
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + reservationColumns
	return scanReservation(q.db.QueryRow(ctx, sql, arg.ID, arg.Status, arg.FromStatus))
}
