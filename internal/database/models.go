package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	SortOrder   int32
	IsActive    bool
	CreatedAt   time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Table struct {
	ID        uuid.UUID
	Label     string
	Capacity  int32
	Section   pgtype.Text
	Status    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID          uuid.UUID
	TableID     uuid.UUID
	Status      string
	Notes       pgtype.Text
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	TotalAmount pgtype.Numeric
	CreatedBy   uuid.UUID
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	CategoryID uuid.UUID
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Notes      pgtype.Text
	Subtotal   pgtype.Numeric
}

type Payment struct {
	ID          uuid.UUID
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
	CreatedAt   time.Time
}

type Reservation struct {
	ID            uuid.UUID
	TableID       uuid.UUID
	CustomerName  string
	CustomerPhone pgtype.Text
	PartySize     int32
	ReservedAt    time.Time
	Status        string
	Notes         pgtype.Text
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Settings is the singleton configuration row (id is always 1).
type Settings struct {
	ID               int32
	RestaurantName   string
	Address          pgtype.Text
	Phone            pgtype.Text
	TaxPercent       pgtype.Numeric
	TaxApplyToAll    bool
	TipOption1       pgtype.Numeric
	TipOption2       pgtype.Numeric
	TipOption3       pgtype.Numeric
	TipAllowCustom   bool
	NotifyNewOrder   bool
	NotifyOrderReady bool
	TableCount       int32
	UpdatedAt        time.Time
}

type AuditEntry struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Action     string
	EntityType string
	EntityID   pgtype.Text
	Detail     pgtype.Text
	CreatedAt  time.Time
}
