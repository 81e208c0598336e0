package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/handler"
	"github.com/cantina-pos/api/internal/middleware"
	"github.com/cantina-pos/api/internal/service"
)

type mockPaymentService struct {
	tableAccountFn   func(ctx context.Context, tableID uuid.UUID) (*service.TableAccount, error)
	previewSplitFn   func(ctx context.Context, req service.SplitRequest) ([]billing.Share, error)
	processPaymentFn func(ctx context.Context, req service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error)
}

func (m *mockPaymentService) GetTableAccount(ctx context.Context, tableID uuid.UUID) (*service.TableAccount, error) {
	return m.tableAccountFn(ctx, tableID)
}

func (m *mockPaymentService) PreviewSplit(ctx context.Context, req service.SplitRequest) ([]billing.Share, error) {
	return m.previewSplitFn(ctx, req)
}

func (m *mockPaymentService) ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error) {
	return m.processPaymentFn(ctx, req)
}

type mockPaymentReadStore struct {
	payments map[uuid.UUID]database.Payment
	orderIDs map[uuid.UUID][]uuid.UUID
	totals   database.PaymentTotalsRow
}

func newMockPaymentReadStore() *mockPaymentReadStore {
	return &mockPaymentReadStore{
		payments: make(map[uuid.UUID]database.Payment),
		orderIDs: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockPaymentReadStore) ListPayments(_ context.Context, arg database.ListPaymentsParams) ([]database.Payment, error) {
	var result []database.Payment
	for _, p := range m.payments {
		if arg.Method.Valid && p.Method != arg.Method.String {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (m *mockPaymentReadStore) GetPaymentTotals(_ context.Context, _ database.PaymentTotalsParams) (database.PaymentTotalsRow, error) {
	return m.totals, nil
}

func (m *mockPaymentReadStore) GetPayment(_ context.Context, id uuid.UUID) (database.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return database.Payment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockPaymentReadStore) ListPaymentOrderIDs(_ context.Context, paymentID uuid.UUID) ([]uuid.UUID, error) {
	return m.orderIDs[paymentID], nil
}

func setupPaymentRouter(svc *mockPaymentService, store *mockPaymentReadStore) *chi.Mux {
	h := handler.NewPaymentHandler(svc, store, nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Route("/payments", h.RegisterRoutes)
		r.Route("/tables", h.RegisterAccountRoute)
	})
	return r
}

func makePayment(method string) database.Payment {
	var subtotal, tax, tip, pct, total pgtype.Numeric
	_ = subtotal.Scan("100.00")
	_ = tax.Scan("16.00")
	_ = tip.Scan("15.00")
	_ = pct.Scan("15.00")
	_ = total.Scan("131.00")
	return database.Payment{
		ID:          uuid.New(),
		TableID:     uuid.New(),
		Method:      method,
		Subtotal:    subtotal,
		TaxAmount:   tax,
		TipAmount:   tip,
		TipPercent:  pct,
		TotalAmount: total,
		Status:      enum.PaymentStatusPaid,
		ProcessedBy: uuid.New(),
	}
}

func TestTableAccount_ReturnsBill(t *testing.T) {
	table := database.Table{ID: uuid.New(), Label: "T1", Capacity: 4, Status: enum.TableStatusOccupied, IsActive: true}
	svc := &mockPaymentService{
		tableAccountFn: func(_ context.Context, _ uuid.UUID) (*service.TableAccount, error) {
			return &service.TableAccount{
				Table:    table,
				Orders:   []service.OrderResult{{Order: makeOrder(table.ID, enum.OrderStatusDelivered)}},
				Subtotal: decimal.RequireFromString("100.00"),
				Tax:      decimal.RequireFromString("16.00"),
				Total:    decimal.RequireFromString("116.00"),
				Suggestions: []billing.TipSuggestion{
					{
						Percent:      decimal.NewFromInt(10),
						Amount:       decimal.RequireFromString("10.00"),
						TotalWithTip: decimal.RequireFromString("126.00"),
					},
				},
				AllowCustom: true,
			}, nil
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "GET", "/tables/"+table.ID.String()+"/account", token, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	data := dataField(t, rr)
	if data["total_amount"] != "116.00" {
		t.Errorf("total_amount: got %v, want 116.00", data["total_amount"])
	}
	suggestions, ok := data["tip_suggestions"].([]interface{})
	if !ok || len(suggestions) != 1 {
		t.Fatalf("expected 1 tip suggestion, body: %s", rr.Body.String())
	}
	first := suggestions[0].(map[string]interface{})
	if first["total_with_tip"] != "126.00" {
		t.Errorf("total_with_tip: got %v, want 126.00", first["total_with_tip"])
	}
}

func TestTableAccount_NoOpenOrders(t *testing.T) {
	svc := &mockPaymentService{
		tableAccountFn: func(_ context.Context, _ uuid.UUID) (*service.TableAccount, error) {
			return nil, service.ErrNoActiveOrders
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "GET", "/tables/"+uuid.NewString()+"/account", token, nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestProcessPayment_Valid(t *testing.T) {
	var gotReq service.ProcessPaymentRequest
	svc := &mockPaymentService{
		processPaymentFn: func(_ context.Context, req service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error) {
			gotReq = req
			return &service.ProcessPaymentResult{
				Payment: makePayment(enum.PaymentMethodCash),
				Orders:  []database.Order{makeOrder(req.TableID, enum.OrderStatusDelivered)},
			}, nil
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, userID := waiterToken(t)

	rr := doAuthRequest(t, r, "POST", "/payments", token, map[string]interface{}{
		"table_id":   uuid.NewString(),
		"method":     enum.PaymentMethodCash,
		"tip_amount": "15.00",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if gotReq.ProcessedBy != userID {
		t.Errorf("processed_by: got %s, want claims user %s", gotReq.ProcessedBy, userID)
	}
	if !gotReq.HasTip || !gotReq.TipAmount.Equal(decimal.RequireFromString("15.00")) {
		t.Errorf("tip_amount: got %s (has=%v), want 15.00", gotReq.TipAmount, gotReq.HasTip)
	}

	data := dataField(t, rr)
	if data["total_amount"] != "131.00" {
		t.Errorf("total_amount: got %v, want 131.00", data["total_amount"])
	}
	if len(data["order_ids"].([]interface{})) != 1 {
		t.Errorf("expected 1 settled order, body: %s", rr.Body.String())
	}
}

func TestProcessPayment_BadMethod(t *testing.T) {
	svc := &mockPaymentService{
		processPaymentFn: func(_ context.Context, _ service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error) {
			return nil, service.ErrInvalidPaymentMethod
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "POST", "/payments", token, map[string]interface{}{
		"table_id": uuid.NewString(),
		"method":   "CRYPTO",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestProcessPayment_CustomTipDisabled(t *testing.T) {
	svc := &mockPaymentService{
		processPaymentFn: func(_ context.Context, _ service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error) {
			return nil, service.ErrCustomTipDisabled
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "POST", "/payments", token, map[string]interface{}{
		"table_id":   uuid.NewString(),
		"method":     enum.PaymentMethodCash,
		"tip_amount": "7.77",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSplitPreview_ShareCountMismatch(t *testing.T) {
	svc := &mockPaymentService{
		previewSplitFn: func(_ context.Context, _ service.SplitRequest) ([]billing.Share, error) {
			return nil, billing.ErrShareCountMismatch
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "POST", "/payments/split-preview", token, map[string]interface{}{
		"table_id":    uuid.NewString(),
		"share_count": 3,
		"shares":      [][]map[string]interface{}{},
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSplitPreview_Valid(t *testing.T) {
	svc := &mockPaymentService{
		previewSplitFn: func(_ context.Context, req service.SplitRequest) ([]billing.Share, error) {
			shares := make([]billing.Share, req.ShareCount)
			for i := range shares {
				shares[i] = billing.Share{
					Subtotal: decimal.RequireFromString("50.00"),
					Tax:      decimal.RequireFromString("8.00"),
					Total:    decimal.RequireFromString("58.00"),
				}
			}
			return shares, nil
		},
	}
	r := setupPaymentRouter(svc, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	orderID, itemID := uuid.NewString(), uuid.NewString()
	rr := doAuthRequest(t, r, "POST", "/payments/split-preview", token, map[string]interface{}{
		"table_id":    uuid.NewString(),
		"share_count": 2,
		"shares": [][]map[string]interface{}{
			{{"order_id": orderID, "item_id": itemID}},
			{},
		},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	shares, ok := resp["data"].([]interface{})
	if !ok || len(shares) != 2 {
		t.Fatalf("expected 2 shares, body: %s", rr.Body.String())
	}
	first := shares[0].(map[string]interface{})
	if first["total"] != "58.00" {
		t.Errorf("share total: got %v, want 58.00", first["total"])
	}
}

func TestListPayments_WithTotals(t *testing.T) {
	store := newMockPaymentReadStore()
	cash := makePayment(enum.PaymentMethodCash)
	card := makePayment(enum.PaymentMethodCard)
	store.payments[cash.ID] = cash
	store.payments[card.ID] = card
	_ = store.totals.SalesTotal.Scan("262.00")
	_ = store.totals.TipTotal.Scan("30.00")
	store.totals.PaymentCount = 2

	r := setupPaymentRouter(&mockPaymentService{}, store)
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "GET", "/payments", token, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	data := dataField(t, rr)
	totals, ok := data["totals"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing totals, body: %s", rr.Body.String())
	}
	if totals["payment_count"] != float64(2) {
		t.Errorf("payment_count: got %v, want 2", totals["payment_count"])
	}
	if totals["tip_total"] != "30.00" {
		t.Errorf("tip_total: got %v, want 30.00", totals["tip_total"])
	}
}

func TestListPayments_MethodFilter(t *testing.T) {
	store := newMockPaymentReadStore()
	cash := makePayment(enum.PaymentMethodCash)
	card := makePayment(enum.PaymentMethodCard)
	store.payments[cash.ID] = cash
	store.payments[card.ID] = card

	r := setupPaymentRouter(&mockPaymentService{}, store)
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "GET", "/payments?method=CARD", token, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	data := dataField(t, rr)
	list, ok := data["payments"].([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected 1 payment, body: %s", rr.Body.String())
	}
}

func TestGetPayment_NotFound(t *testing.T) {
	r := setupPaymentRouter(&mockPaymentService{}, newMockPaymentReadStore())
	token, _ := waiterToken(t)

	rr := doAuthRequest(t, r, "GET", "/payments/"+uuid.NewString(), token, nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
