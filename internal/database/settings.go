package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const settingsColumns = `id, restaurant_name, address, phone, tax_percent, tax_apply_to_all,
	tip_option_1, tip_option_2, tip_option_3, tip_allow_custom,
	notify_new_order, notify_order_ready, table_count, updated_at`

func scanSettings(row interface{ Scan(dest ...interface{}) error }) (Settings, error) {
	var s Settings
	err := row.Scan(
		&s.ID, &s.RestaurantName, &s.Address, &s.Phone, &s.TaxPercent, &s.TaxApplyToAll,
		&s.TipOption1, &s.TipOption2, &s.TipOption3, &s.TipAllowCustom,
		&s.NotifyNewOrder, &s.NotifyOrderReady, &s.TableCount, &s.UpdatedAt,
	)
	return s, err
}

func (q *Queries) GetSettings(ctx context.Context) (Settings, error) {
	const sql = `SELECT ` + settingsColumns + ` FROM settings WHERE id = 1`
	return scanSettings(q.db.QueryRow(ctx, sql))
}

// InsertDefaultSettings creates the singleton row with default values if
// it does not exist yet. Defaults: tax 16%, tips 10/15/20, custom allowed.
func (q *Queries) InsertDefaultSettings(ctx context.Context) error {
	const sql = `
		INSERT INTO settings (id, restaurant_name)
		VALUES (1, 'Restaurant')
		ON CONFLICT (id) DO NOTHING`
	_, err := q.db.Exec(ctx, sql)
	return err
}

type UpdateGeneralSettingsParams struct {
	RestaurantName string
	Address        pgtype.Text
	Phone          pgtype.Text
	TableCount     int32
}

func (q *Queries) UpdateGeneralSettings(ctx context.Context, arg UpdateGeneralSettingsParams) (Settings, error) {
	const sql = `
		UPDATE settings
		SET restaurant_name = $1, address = $2, phone = $3, table_count = $4, updated_at = now()
		WHERE id = 1
		RETURNING ` + settingsColumns
	return scanSettings(q.db.QueryRow(ctx, sql, arg.RestaurantName, arg.Address, arg.Phone, arg.TableCount))
}

type UpdateTaxSettingsParams struct {
	TaxPercent    pgtype.Numeric
	TaxApplyToAll bool
}

func (q *Queries) UpdateTaxSettings(ctx context.Context, arg UpdateTaxSettingsParams) (Settings, error) {
	const sql = `
		UPDATE settings
		SET tax_percent = $1, tax_apply_to_all = $2, updated_at = now()
		WHERE id = 1
		RETURNING ` + settingsColumns
	return scanSettings(q.db.QueryRow(ctx, sql, arg.TaxPercent, arg.TaxApplyToAll))
}

type UpdateTipSettingsParams struct {
	TipOption1     pgtype.Numeric
	TipOption2     pgtype.Numeric
	TipOption3     pgtype.Numeric
	TipAllowCustom bool
}

func (q *Queries) UpdateTipSettings(ctx context.Context, arg UpdateTipSettingsParams) (Settings, error) {
	const sql = `
		UPDATE settings
		SET tip_option_1 = $1, tip_option_2 = $2, tip_option_3 = $3, tip_allow_custom = $4, updated_at = now()
		WHERE id = 1
		RETURNING ` + settingsColumns
	return scanSettings(q.db.QueryRow(ctx, sql, arg.TipOption1, arg.TipOption2, arg.TipOption3, arg.TipAllowCustom))
}

type UpdateNotificationSettingsParams struct {
	NotifyNewOrder   bool
	NotifyOrderReady bool
}

func (q *Queries) UpdateNotificationSettings(ctx context.Context, arg UpdateNotificationSettingsParams) (Settings, error) {
	const sql = `
		UPDATE settings
		SET notify_new_order = $1, notify_order_ready = $2, updated_at = now()
		WHERE id = 1
		RETURNING ` + settingsColumns
	return scanSettings(q.db.QueryRow(ctx, sql, arg.NotifyNewOrder, arg.NotifyOrderReady))
}
