package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
)

// Errors returned by the payment service.
var (
	ErrNoActiveOrders       = errors.New("table has no active orders")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrNegativeTip          = errors.New("tip must not be negative")
	ErrCustomTipDisabled    = errors.New("custom tip amounts are disabled")
	ErrUnknownShareItem     = errors.New("item does not belong to the table's open orders")
)

// PaymentStore defines the DB methods needed by the payment service.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetSettings(ctx context.Context) (database.Settings, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	AddPaymentOrder(ctx context.Context, arg database.AddPaymentOrderParams) error
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentService handles bill review, split previews, and settlement.
type PaymentService struct {
	pool     TxBeginner
	store    PaymentStore
	newStore NewPaymentStore
}

// NewPaymentService creates a new PaymentService. store must be backed by
// the pool; it is used for reads outside transactions.
func NewPaymentService(pool TxBeginner, store PaymentStore, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, store: store, newStore: newStore}
}

// TableAccount is the open bill for a table: its in-flight orders, combined
// totals, and tip suggestions.
type TableAccount struct {
	Table       database.Table
	Orders      []OrderResult
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	Suggestions []billing.TipSuggestion
	AllowCustom bool
}

// GetTableAccount loads everything a cashier needs to close out a table.
func (s *PaymentService) GetTableAccount(ctx context.Context, tableID uuid.UUID) (*TableAccount, error) {
	return s.tableAccount(ctx, s.store, tableID)
}

func (s *PaymentService) tableAccount(ctx context.Context, store PaymentStore, tableID uuid.UUID) (*TableAccount, error) {
	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	orders, err := store.ListActiveOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoActiveOrders
	}

	account := &TableAccount{
		Table:    table,
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
	}
	for _, order := range orders {
		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		account.Orders = append(account.Orders, OrderResult{Order: order, Items: items})
		account.Subtotal = account.Subtotal.Add(numericToDecimal(order.Subtotal))
		account.Tax = account.Tax.Add(numericToDecimal(order.TaxAmount))
	}
	account.Total = account.Subtotal.Add(account.Tax)

	cfg := tipConfigFor(ctx, store)
	account.Suggestions = billing.SuggestedTips(account.Subtotal, account.Tax, cfg)
	account.AllowCustom = cfg.AllowCustom
	return account, nil
}

// ShareItemRef points at one line item on one of the table's open orders.
type ShareItemRef struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
}

// SplitRequest assigns the table's line items to shares for a split bill.
type SplitRequest struct {
	TableID    uuid.UUID
	ShareCount int
	Shares     [][]ShareItemRef
}

// PreviewSplit resolves a split request against the table's open orders and
// returns the per-share totals without touching anything.
func (s *PaymentService) PreviewSplit(ctx context.Context, req SplitRequest) ([]billing.Share, error) {
	account, err := s.GetTableAccount(ctx, req.TableID)
	if err != nil {
		return nil, err
	}
	return resolveSplit(account, req)
}

// resolveSplit maps item references onto the account's actual line items and
// runs the split. A reference to an item outside the account fails the whole
// request.
func resolveSplit(account *TableAccount, req SplitRequest) ([]billing.Share, error) {
	index := make(map[uuid.UUID]billing.SplitItem)
	for _, or := range account.Orders {
		for _, item := range or.Items {
			index[item.ID] = billing.SplitItem{
				OrderID:  or.Order.ID,
				ItemID:   item.ID,
				Name:     item.Name,
				Subtotal: numericToDecimal(item.Subtotal),
			}
		}
	}

	assignments := make([][]billing.SplitItem, len(req.Shares))
	for i, refs := range req.Shares {
		for _, ref := range refs {
			item, ok := index[ref.ItemID]
			if !ok || item.OrderID != ref.OrderID {
				return nil, fmt.Errorf("shares[%d]: %w", i, ErrUnknownShareItem)
			}
			assignments[i] = append(assignments[i], item)
		}
	}

	return billing.SplitBill(req.ShareCount, assignments)
}

// ProcessPaymentRequest settles the whole table in one payment.
type ProcessPaymentRequest struct {
	TableID     uuid.UUID
	Method      string
	TipAmount   decimal.Decimal
	HasTip      bool
	TipPercent  decimal.Decimal
	HasPercent  bool
	Split       *SplitRequest
	ProcessedBy uuid.UUID
}

// ProcessPaymentResult is the settled payment with the orders it closed.
type ProcessPaymentResult struct {
	Payment database.Payment
	Orders  []database.Order
	Table   database.Table
}

// shareJSON is the persisted form of one split share.
type shareJSON struct {
	Items    []shareItemJSON `json:"items"`
	Subtotal string          `json:"subtotal"`
	Tax      string          `json:"tax"`
	Tip      string          `json:"tip"`
	Total    string          `json:"total"`
}

type shareItemJSON struct {
	OrderID  uuid.UUID `json:"order_id"`
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Subtotal string    `json:"subtotal"`
}

// ProcessPayment settles every active order on a table atomically: it writes
// the payment row, links the orders it covers, marks them DELIVERED, and
// moves the table to CLEANING, all in one transaction.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*ProcessPaymentResult, error) {
	if !isValidPaymentMethod(req.Method) {
		return nil, ErrInvalidPaymentMethod
	}
	if req.HasTip && req.TipAmount.IsNegative() {
		return nil, ErrNegativeTip
	}
	if req.HasPercent && req.TipPercent.IsNegative() {
		return nil, ErrNegativeTip
	}

	// Begin the transaction BEFORE reading the table's orders. Two concurrent
	// settlements could otherwise both see the same open orders and pay the
	// table twice.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	account, err := s.tableAccount(ctx, store, req.TableID)
	if err != nil {
		return nil, err
	}

	if req.HasTip && !account.AllowCustom {
		return nil, ErrCustomTipDisabled
	}
	tip := billing.ResolveTip(account.Subtotal, req.TipAmount, req.TipPercent, req.HasTip, req.HasPercent)
	totalAmount := account.Subtotal.Add(account.Tax).Add(tip.Amount)

	isSplit := false
	shareCount := pgtype.Int4{}
	var sharesJSON []byte
	if req.Split != nil {
		shares, err := resolveSplit(account, *req.Split)
		if err != nil {
			return nil, err
		}
		sharesJSON, err = marshalShares(shares)
		if err != nil {
			return nil, fmt.Errorf("marshal shares: %w", err)
		}
		isSplit = true
		shareCount = pgtype.Int4{Int32: int32(req.Split.ShareCount), Valid: true}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		TableID:     req.TableID,
		Method:      req.Method,
		Subtotal:    decimalToNumeric(account.Subtotal),
		TaxAmount:   decimalToNumeric(account.Tax),
		TipAmount:   decimalToNumeric(tip.Amount),
		TipPercent:  decimalToNumeric(tip.Percent),
		TipCustom:   tip.Custom,
		TotalAmount: decimalToNumeric(totalAmount),
		IsSplit:     isSplit,
		ShareCount:  shareCount,
		Shares:      sharesJSON,
		Status:      enum.PaymentStatusPaid,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	var closed []database.Order
	for _, or := range account.Orders {
		if err := store.AddPaymentOrder(ctx, database.AddPaymentOrderParams{
			PaymentID: payment.ID,
			OrderID:   or.Order.ID,
		}); err != nil {
			return nil, fmt.Errorf("link payment order: %w", err)
		}
		order, err := store.SetOrderStatus(ctx, database.SetOrderStatusParams{
			ID:     or.Order.ID,
			Status: enum.OrderStatusDelivered,
		})
		if err != nil {
			return nil, fmt.Errorf("close order: %w", err)
		}
		closed = append(closed, order)
	}

	table, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     req.TableID,
		Status: enum.TableStatusCleaning,
	})
	if err != nil {
		return nil, fmt.Errorf("update table status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ProcessPaymentResult{Payment: payment, Orders: closed, Table: table}, nil
}

func marshalShares(shares []billing.Share) ([]byte, error) {
	out := make([]shareJSON, len(shares))
	for i, share := range shares {
		sj := shareJSON{
			Items:    []shareItemJSON{},
			Subtotal: share.Subtotal.StringFixed(2),
			Tax:      share.Tax.StringFixed(2),
			Tip:      share.Tip.StringFixed(2),
			Total:    share.Total.StringFixed(2),
		}
		for _, item := range share.Items {
			sj.Items = append(sj.Items, shareItemJSON{
				OrderID:  item.OrderID,
				ItemID:   item.ItemID,
				Name:     item.Name,
				Subtotal: item.Subtotal.StringFixed(2),
			})
		}
		out[i] = sj
	}
	return json.Marshal(out)
}

func isValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodTransfer, enum.PaymentMethodCard:
		return true
	}
	return false
}

// tipConfigFor reads the configured tip options, falling back to the
// defaults when the settings row does not exist yet.
func tipConfigFor(ctx context.Context, store interface {
	GetSettings(ctx context.Context) (database.Settings, error)
}) billing.TipConfig {
	settings, err := store.GetSettings(ctx)
	if err != nil {
		return billing.TipConfig{Options: billing.DefaultTipOptions, AllowCustom: true}
	}
	return billing.TipConfig{
		Options: [3]decimal.Decimal{
			numericToDecimal(settings.TipOption1),
			numericToDecimal(settings.TipOption2),
			numericToDecimal(settings.TipOption3),
		},
		AllowCustom: settings.TipAllowCustom,
	}
}
