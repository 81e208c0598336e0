package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
)

// mockPaymentStore implements PaymentStore with configurable behavior.
type mockPaymentStore struct {
	getTableFn                func(ctx context.Context, id uuid.UUID) (database.Table, error)
	updateTableStatusFn       func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	listActiveOrdersByTableFn func(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	listOrderItemsByOrderFn   func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	getSettingsFn             func(ctx context.Context) (database.Settings, error)
	createPaymentFn           func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	addPaymentOrderFn         func(ctx context.Context, arg database.AddPaymentOrderParams) error
	setOrderStatusFn          func(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
}

func (m *mockPaymentStore) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.getTableFn(ctx, id)
}
func (m *mockPaymentStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	return m.updateTableStatusFn(ctx, arg)
}
func (m *mockPaymentStore) ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	return m.listActiveOrdersByTableFn(ctx, tableID)
}
func (m *mockPaymentStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsByOrderFn(ctx, orderID)
}
func (m *mockPaymentStore) GetSettings(ctx context.Context) (database.Settings, error) {
	return m.getSettingsFn(ctx)
}
func (m *mockPaymentStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	return m.createPaymentFn(ctx, arg)
}
func (m *mockPaymentStore) AddPaymentOrder(ctx context.Context, arg database.AddPaymentOrderParams) error {
	return m.addPaymentOrderFn(ctx, arg)
}
func (m *mockPaymentStore) SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error) {
	return m.setOrderStatusFn(ctx, arg)
}

func newTestPaymentService(store *mockPaymentStore) *PaymentService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) PaymentStore { return store }
	return NewPaymentService(pool, store, newStore)
}

// defaultPaymentStore serves one occupied table with one pending order:
// two line items, subtotal 50.00, tax 8.00. Tests override what they need.
func defaultPaymentStore(tableID, orderID, itemA, itemB uuid.UUID) *mockPaymentStore {
	return &mockPaymentStore{
		getTableFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			if id == tableID {
				return database.Table{ID: tableID, Label: "Mesa 3", Status: enum.TableStatusOccupied, IsActive: true}, nil
			}
			return database.Table{}, pgx.ErrNoRows
		},
		updateTableStatusFn: func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
			return database.Table{ID: arg.ID, Status: arg.Status}, nil
		},
		listActiveOrdersByTableFn: func(ctx context.Context, tid uuid.UUID) ([]database.Order, error) {
			return []database.Order{{
				ID: orderID, TableID: tableID, Status: enum.OrderStatusReady,
				Subtotal: makeNumeric("50.00"), TaxAmount: makeNumeric("8.00"),
				TotalAmount: makeNumeric("58.00"), IsActive: true,
			}}, nil
		},
		listOrderItemsByOrderFn: func(ctx context.Context, oid uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{
				{ID: itemA, OrderID: orderID, Name: "Mole Poblano", Subtotal: makeNumeric("30.00")},
				{ID: itemB, OrderID: orderID, Name: "Flan", Subtotal: makeNumeric("20.00")},
			}, nil
		},
		getSettingsFn: func(ctx context.Context) (database.Settings, error) {
			return database.Settings{}, pgx.ErrNoRows
		},
		createPaymentFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			return database.Payment{
				ID: uuid.New(), TableID: arg.TableID, Method: arg.Method,
				Subtotal: arg.Subtotal, TaxAmount: arg.TaxAmount,
				TipAmount: arg.TipAmount, TipPercent: arg.TipPercent, TipCustom: arg.TipCustom,
				TotalAmount: arg.TotalAmount, IsSplit: arg.IsSplit,
				ShareCount: arg.ShareCount, Shares: arg.Shares,
				Status: arg.Status, ProcessedBy: arg.ProcessedBy,
			}, nil
		},
		addPaymentOrderFn: func(ctx context.Context, arg database.AddPaymentOrderParams) error {
			return nil
		},
		setOrderStatusFn: func(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error) {
			return database.Order{ID: arg.ID, TableID: tableID, Status: arg.Status, IsActive: true}, nil
		},
	}
}

// =====================
// Table account tests
// =====================

func TestGetTableAccount_TotalsAndSuggestions(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())
	svc := newTestPaymentService(store)

	account, err := svc.GetTableAccount(context.Background(), tableID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !account.Subtotal.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("subtotal: got %v, want 50.00", account.Subtotal)
	}
	if !account.Tax.Equal(decimal.RequireFromString("8.00")) {
		t.Errorf("tax: got %v, want 8.00", account.Tax)
	}
	if !account.Total.Equal(decimal.RequireFromString("58.00")) {
		t.Errorf("total: got %v, want 58.00", account.Total)
	}

	// Default tip options 10/15/20, computed on the tax-exclusive subtotal.
	if len(account.Suggestions) != 3 {
		t.Fatalf("expected 3 tip suggestions, got %d", len(account.Suggestions))
	}
	wantAmounts := []string{"5.00", "7.50", "10.00"}
	for i, want := range wantAmounts {
		if !account.Suggestions[i].Amount.Equal(decimal.RequireFromString(want)) {
			t.Errorf("suggestion[%d] amount: got %v, want %s", i, account.Suggestions[i].Amount, want)
		}
	}
}

func TestGetTableAccount_TableNotFound(t *testing.T) {
	store := defaultPaymentStore(uuid.New(), uuid.New(), uuid.New(), uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.GetTableAccount(context.Background(), uuid.New())
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got: %v", err)
	}
}

func TestGetTableAccount_NoActiveOrders(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())
	store.listActiveOrdersByTableFn = func(ctx context.Context, tid uuid.UUID) ([]database.Order, error) {
		return nil, nil
	}
	svc := newTestPaymentService(store)

	_, err := svc.GetTableAccount(context.Background(), tableID)
	if !errors.Is(err, ErrNoActiveOrders) {
		t.Fatalf("expected ErrNoActiveOrders, got: %v", err)
	}
}

// =====================
// Split preview tests
// =====================

func TestPreviewSplit_TwoShares(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	itemA := uuid.New()
	itemB := uuid.New()
	store := defaultPaymentStore(tableID, orderID, itemA, itemB)
	svc := newTestPaymentService(store)

	shares, err := svc.PreviewSplit(context.Background(), SplitRequest{
		TableID:    tableID,
		ShareCount: 2,
		Shares: [][]ShareItemRef{
			{{OrderID: orderID, ItemID: itemA}},
			{{OrderID: orderID, ItemID: itemB}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}

	// Share tax is a fixed 16% of the share subtotal.
	if !shares[0].Subtotal.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("share 0 subtotal: got %v, want 30.00", shares[0].Subtotal)
	}
	if !shares[0].Tax.Equal(decimal.RequireFromString("4.80")) {
		t.Errorf("share 0 tax: got %v, want 4.80", shares[0].Tax)
	}
	if !shares[1].Total.Equal(decimal.RequireFromString("23.20")) {
		t.Errorf("share 1 total: got %v, want 23.20", shares[1].Total)
	}
}

func TestPreviewSplit_UnknownItemRejected(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	store := defaultPaymentStore(tableID, orderID, uuid.New(), uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.PreviewSplit(context.Background(), SplitRequest{
		TableID:    tableID,
		ShareCount: 2,
		Shares: [][]ShareItemRef{
			{{OrderID: orderID, ItemID: uuid.New()}}, // not on the table
			{},
		},
	})
	if !errors.Is(err, ErrUnknownShareItem) {
		t.Fatalf("expected ErrUnknownShareItem, got: %v", err)
	}
}

func TestPreviewSplit_WrongOrderRejected(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	itemA := uuid.New()
	store := defaultPaymentStore(tableID, orderID, itemA, uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.PreviewSplit(context.Background(), SplitRequest{
		TableID:    tableID,
		ShareCount: 2,
		Shares: [][]ShareItemRef{
			{{OrderID: uuid.New(), ItemID: itemA}}, // item exists but order ref is wrong
			{},
		},
	})
	if !errors.Is(err, ErrUnknownShareItem) {
		t.Fatalf("expected ErrUnknownShareItem, got: %v", err)
	}
}

func TestPreviewSplit_ShareCountValidated(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.PreviewSplit(context.Background(), SplitRequest{
		TableID:    tableID,
		ShareCount: 1,
		Shares:     [][]ShareItemRef{{}},
	})
	if !errors.Is(err, billing.ErrShareCountRange) {
		t.Fatalf("expected ErrShareCountRange, got: %v", err)
	}
}

// =====================
// Settlement tests
// =====================

func TestProcessPayment_SettlesWholeTable(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	store := defaultPaymentStore(tableID, orderID, uuid.New(), uuid.New())

	var capturedPayment database.CreatePaymentParams
	store.createPaymentFn = func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
		capturedPayment = arg
		return database.Payment{ID: uuid.New(), TableID: arg.TableID, Status: arg.Status}, nil
	}

	var linkedOrders []uuid.UUID
	store.addPaymentOrderFn = func(ctx context.Context, arg database.AddPaymentOrderParams) error {
		linkedOrders = append(linkedOrders, arg.OrderID)
		return nil
	}

	var closedAs string
	store.setOrderStatusFn = func(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error) {
		closedAs = arg.Status
		return database.Order{ID: arg.ID, TableID: tableID, Status: arg.Status, IsActive: true}, nil
	}

	var tableSyncedTo string
	store.updateTableStatusFn = func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
		tableSyncedTo = arg.Status
		return database.Table{ID: arg.ID, Status: arg.Status}, nil
	}

	svc := newTestPaymentService(store)
	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodCash,
		ProcessedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedPayment.Status != enum.PaymentStatusPaid {
		t.Errorf("payment status: got %v, want PAID", capturedPayment.Status)
	}
	if !numericEquals(capturedPayment.Subtotal, "50.00") {
		t.Errorf("payment subtotal: got %v, want 50.00", numericToDecimal(capturedPayment.Subtotal))
	}
	if !numericEquals(capturedPayment.TotalAmount, "58.00") {
		t.Errorf("payment total: got %v, want 58.00", numericToDecimal(capturedPayment.TotalAmount))
	}
	if len(linkedOrders) != 1 || linkedOrders[0] != orderID {
		t.Errorf("linked orders: got %v, want [%v]", linkedOrders, orderID)
	}
	if closedAs != enum.OrderStatusDelivered {
		t.Errorf("orders closed as %q, want DELIVERED", closedAs)
	}
	if tableSyncedTo != enum.TableStatusCleaning {
		t.Errorf("table synced to %q, want CLEANING", tableSyncedTo)
	}
	if len(result.Orders) != 1 {
		t.Errorf("result orders: got %d, want 1", len(result.Orders))
	}
}

func TestProcessPayment_TipAmountWinsOverPercent(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())

	var captured database.CreatePaymentParams
	store.createPaymentFn = func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
		captured = arg
		return database.Payment{ID: uuid.New(), Status: arg.Status}, nil
	}

	svc := newTestPaymentService(store)
	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodCard,
		TipAmount:   decimal.RequireFromString("10.00"),
		HasTip:      true,
		TipPercent:  decimal.RequireFromString("15"),
		HasPercent:  true,
		ProcessedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Explicit amount wins: 10.00 on a 50.00 subtotal is 20%.
	if !numericEquals(captured.TipAmount, "10.00") {
		t.Errorf("tip amount: got %v, want 10.00", numericToDecimal(captured.TipAmount))
	}
	if !numericEquals(captured.TipPercent, "20.00") {
		t.Errorf("tip percent: got %v, want 20.00", numericToDecimal(captured.TipPercent))
	}
	if !captured.TipCustom {
		t.Error("tip should be flagged custom")
	}
	// total = 50 + 8 + 10
	if !numericEquals(captured.TotalAmount, "68.00") {
		t.Errorf("total: got %v, want 68.00", numericToDecimal(captured.TotalAmount))
	}
}

func TestProcessPayment_TipPercentOnly(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())

	var captured database.CreatePaymentParams
	store.createPaymentFn = func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
		captured = arg
		return database.Payment{ID: uuid.New(), Status: arg.Status}, nil
	}

	svc := newTestPaymentService(store)
	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodTransfer,
		TipPercent:  decimal.RequireFromString("15"),
		HasPercent:  true,
		ProcessedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 15% of the 50.00 subtotal, tax excluded from the base.
	if !numericEquals(captured.TipAmount, "7.50") {
		t.Errorf("tip amount: got %v, want 7.50", numericToDecimal(captured.TipAmount))
	}
	if captured.TipCustom {
		t.Error("percentage tip should not be flagged custom")
	}
}

func TestProcessPayment_CustomTipDisabled(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())
	store.getSettingsFn = func(ctx context.Context) (database.Settings, error) {
		return database.Settings{
			TipOption1: makeNumeric("10"), TipOption2: makeNumeric("15"), TipOption3: makeNumeric("20"),
			TipAllowCustom: false,
		}, nil
	}

	svc := newTestPaymentService(store)
	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodCash,
		TipAmount:   decimal.RequireFromString("5.00"),
		HasTip:      true,
		ProcessedBy: uuid.New(),
	})
	if !errors.Is(err, ErrCustomTipDisabled) {
		t.Fatalf("expected ErrCustomTipDisabled, got: %v", err)
	}
}

func TestProcessPayment_InvalidMethod(t *testing.T) {
	store := defaultPaymentStore(uuid.New(), uuid.New(), uuid.New(), uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     uuid.New(),
		Method:      "CHECK",
		ProcessedBy: uuid.New(),
	})
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got: %v", err)
	}
}

func TestProcessPayment_NegativeTip(t *testing.T) {
	store := defaultPaymentStore(uuid.New(), uuid.New(), uuid.New(), uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     uuid.New(),
		Method:      enum.PaymentMethodCash,
		TipAmount:   decimal.RequireFromString("-1.00"),
		HasTip:      true,
		ProcessedBy: uuid.New(),
	})
	if !errors.Is(err, ErrNegativeTip) {
		t.Fatalf("expected ErrNegativeTip, got: %v", err)
	}
}

func TestProcessPayment_NoActiveOrders(t *testing.T) {
	tableID := uuid.New()
	store := defaultPaymentStore(tableID, uuid.New(), uuid.New(), uuid.New())
	store.listActiveOrdersByTableFn = func(ctx context.Context, tid uuid.UUID) ([]database.Order, error) {
		return nil, nil
	}
	svc := newTestPaymentService(store)

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodCash,
		ProcessedBy: uuid.New(),
	})
	if !errors.Is(err, ErrNoActiveOrders) {
		t.Fatalf("expected ErrNoActiveOrders, got: %v", err)
	}
}

func TestProcessPayment_SplitPersistsShares(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	itemA := uuid.New()
	itemB := uuid.New()
	store := defaultPaymentStore(tableID, orderID, itemA, itemB)

	var captured database.CreatePaymentParams
	store.createPaymentFn = func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
		captured = arg
		return database.Payment{ID: uuid.New(), Status: arg.Status}, nil
	}

	svc := newTestPaymentService(store)
	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodCash,
		ProcessedBy: uuid.New(),
		Split: &SplitRequest{
			TableID:    tableID,
			ShareCount: 2,
			Shares: [][]ShareItemRef{
				{{OrderID: orderID, ItemID: itemA}},
				{{OrderID: orderID, ItemID: itemB}},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !captured.IsSplit {
		t.Error("payment should be flagged as split")
	}
	if !captured.ShareCount.Valid || captured.ShareCount.Int32 != 2 {
		t.Errorf("share count: got %v, want 2", captured.ShareCount)
	}

	var shares []struct {
		Subtotal string `json:"subtotal"`
		Tax      string `json:"tax"`
		Total    string `json:"total"`
	}
	if err := json.Unmarshal(captured.Shares, &shares); err != nil {
		t.Fatalf("shares should be valid JSON: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 persisted shares, got %d", len(shares))
	}
	if shares[0].Subtotal != "30.00" || shares[0].Tax != "4.80" || shares[0].Total != "34.80" {
		t.Errorf("share 0: got %+v, want 30.00/4.80/34.80", shares[0])
	}
}

func TestProcessPayment_SplitShareCountMismatch(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	itemA := uuid.New()
	store := defaultPaymentStore(tableID, orderID, itemA, uuid.New())
	svc := newTestPaymentService(store)

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		TableID:     tableID,
		Method:      enum.PaymentMethodCash,
		ProcessedBy: uuid.New(),
		Split: &SplitRequest{
			TableID:    tableID,
			ShareCount: 3,
			Shares:     [][]ShareItemRef{{{OrderID: orderID, ItemID: itemA}}, {}},
		},
	})
	if !errors.Is(err, billing.ErrShareCountMismatch) {
		t.Fatalf("expected ErrShareCountMismatch, got: %v", err)
	}
}
