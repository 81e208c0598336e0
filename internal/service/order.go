package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
)

const maxNotesLen = 500

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
	ErrItemNotFound      = errors.New("menu item not found")
	ErrItemUnavailable   = errors.New("menu item not available")
	ErrNotesTooLong      = errors.New("notes must be at most 500 characters")
	ErrInvalidTableID    = errors.New("invalid table_id")
	ErrTableNotFound     = errors.New("table not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotPending   = errors.New("only pending orders can be edited")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("order status changed, please retry")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetSettings(ctx context.Context) (database.Settings, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	UpdateOrderContents(ctx context.Context, arg database.UpdateOrderContentsParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SoftDeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TableID   string
	CreatedBy uuid.UUID
	Notes     string
	Items     []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// EditOrderRequest replaces the line items of a pending order.
type EditOrderRequest struct {
	OrderID uuid.UUID
	Notes   string
	Items   []CreateOrderItemRequest
}

// OrderResult is the full order with its line items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService. store must be backed by the
// pool; it is used for reads and for table sync outside transactions.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore}
}

// allowedTransitions maps each order status to the statuses it may move to.
// DELIVERED and CANCELLED are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
	enum.OrderStatusDelivered: {},
	enum.OrderStatusCancelled: {},
}

func isValidOrderStatus(s string) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// ValidateTransition reports whether an order may move from one status to
// another.
func ValidateTransition(from, to string) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s: %w", from, to, ErrInvalidTransition)
}

// CreateOrder validates, prices, and creates an order atomically. The table
// status sync afterwards is best effort: a failure there is logged but never
// fails the already committed order.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if len(req.Notes) > maxNotesLen {
		return nil, ErrNotesTooLong
	}
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return nil, ErrInvalidTableID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	items, lines, err := buildLineItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	totals := billing.ComputeTotals(lines, taxPercentFor(ctx, store))

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:     tableID,
		Status:      enum.OrderStatusPending,
		Notes:       textOrNull(req.Notes),
		Subtotal:    decimalToNumeric(totals.Subtotal),
		TaxAmount:   decimalToNumeric(totals.Tax),
		TotalAmount: decimalToNumeric(totals.Total),
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var inserted []database.OrderItem
	for _, params := range items {
		params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		inserted = append(inserted, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if table.Status == enum.TableStatusFree {
		if _, err := s.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     tableID,
			Status: enum.TableStatusOccupied,
		}); err != nil {
			log.Printf("ERROR: sync table %s to OCCUPIED: %v", table.Label, err)
		}
	}

	return &OrderResult{Order: order, Items: inserted}, nil
}

// EditOrder replaces the line items and notes of a PENDING order, recomputing
// its totals. Orders past PENDING cannot be edited.
func (s *OrderService) EditOrder(ctx context.Context, req EditOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if len(req.Notes) > maxNotesLen {
		return nil, ErrNotesTooLong
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	items, lines, err := buildLineItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	totals := billing.ComputeTotals(lines, taxPercentFor(ctx, store))

	if err := store.DeleteOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	var inserted []database.OrderItem
	for _, params := range items {
		params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		inserted = append(inserted, item)
	}

	order, err = store.UpdateOrderContents(ctx, database.UpdateOrderContentsParams{
		ID:          order.ID,
		Notes:       textOrNull(req.Notes),
		Subtotal:    decimalToNumeric(totals.Subtotal),
		TaxAmount:   decimalToNumeric(totals.Tax),
		TotalAmount: decimalToNumeric(totals.Total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: inserted}, nil
}

// UpdateStatus moves an order along the status machine. The update is guarded
// on the status the caller saw: a concurrent transition surfaces as
// ErrStatusConflict instead of silently double-applying.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus string) (database.Order, error) {
	if !isValidOrderStatus(newStatus) {
		return database.Order{}, ErrInvalidStatus
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := ValidateTransition(order.Status, newStatus); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     newStatus,
		FromStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if newStatus == enum.OrderStatusDelivered || newStatus == enum.OrderStatusCancelled {
		s.reconcileTable(ctx, updated.TableID, newStatus)
	}

	return updated, nil
}

// VoidOrder soft-deletes an order regardless of status, then reconciles the
// table as if the order had been cancelled.
func (s *OrderService) VoidOrder(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if _, err := s.store.SoftDeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("void order: %w", err)
	}

	s.reconcileTable(ctx, order.TableID, enum.OrderStatusCancelled)
	return order, nil
}

// reconcileTable frees or flags a table once its last active order closes.
// Best effort: failures are logged, never raised, so a stale table status
// can always be fixed manually.
func (s *OrderService) reconcileTable(ctx context.Context, tableID uuid.UUID, closedAs string) {
	count, err := s.store.CountActiveOrdersByTable(ctx, tableID)
	if err != nil {
		log.Printf("ERROR: count active orders for table %s: %v", tableID, err)
		return
	}
	if count > 0 {
		return
	}

	status := enum.TableStatusCleaning
	if closedAs == enum.OrderStatusCancelled {
		status = enum.TableStatusFree
	}
	if _, err := s.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     tableID,
		Status: status,
	}); err != nil {
		log.Printf("ERROR: sync table %s to %s: %v", tableID, status, err)
	}
}

// buildLineItems validates every requested line against the menu and prices
// it, snapshotting name, category, and unit price. Any bad line fails the
// whole order; the error names the offending line.
func buildLineItems(ctx context.Context, store OrderStore, reqs []CreateOrderItemRequest) ([]database.CreateOrderItemParams, []billing.LineItem, error) {
	var items []database.CreateOrderItemParams
	var lines []billing.LineItem

	for i, req := range reqs {
		if req.Quantity <= 0 {
			return nil, nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if len(req.Notes) > maxNotesLen {
			return nil, nil, fmt.Errorf("items[%d]: %w", i, ErrNotesTooLong)
		}
		itemID, err := uuid.Parse(req.MenuItemID)
		if err != nil {
			return nil, nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}

		mi, err := store.GetMenuItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, fmt.Errorf("items[%d]: %w", i, ErrItemNotFound)
			}
			return nil, nil, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}
		if !mi.IsActive {
			return nil, nil, fmt.Errorf("items[%d] %s: %w", i, mi.Name, ErrItemNotFound)
		}
		if !mi.IsAvailable {
			return nil, nil, fmt.Errorf("items[%d] %s: %w", i, mi.Name, ErrItemUnavailable)
		}

		unitPrice := numericToDecimal(mi.Price)
		lines = append(lines, billing.LineItem{UnitPrice: unitPrice, Quantity: req.Quantity})

		items = append(items, database.CreateOrderItemParams{
			MenuItemID: itemID,
			Name:       mi.Name,
			CategoryID: mi.CategoryID,
			UnitPrice:  decimalToNumeric(unitPrice),
			Quantity:   req.Quantity,
			Notes:      textOrNull(req.Notes),
			Subtotal:   decimalToNumeric(billing.LineSubtotal(unitPrice, req.Quantity)),
		})
	}

	return items, lines, nil
}

// taxPercentFor reads the configured tax rate, falling back to the default
// when the settings row does not exist yet.
func taxPercentFor(ctx context.Context, store OrderStore) decimal.Decimal {
	settings, err := store.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: get settings, using default tax: %v", err)
		}
		return billing.DefaultTaxPercent
	}
	return numericToDecimal(settings.TaxPercent)
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
