package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/middleware"
	"github.com/cantina-pos/api/internal/service"
	"github.com/cantina-pos/api/internal/ws"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	GetTableAccount(ctx context.Context, tableID uuid.UUID) (*service.TableAccount, error)
	PreviewSplit(ctx context.Context, req service.SplitRequest) ([]billing.Share, error)
	ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error)
}

// PaymentReadStore defines the read-only database methods payment handlers
// use directly. Satisfied by *database.Queries.
type PaymentReadStore interface {
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error)
	GetPaymentTotals(ctx context.Context, arg database.PaymentTotalsParams) (database.PaymentTotalsRow, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPaymentOrderIDs(ctx context.Context, paymentID uuid.UUID) ([]uuid.UUID, error)
}

// PaymentHandler handles checkout and payment history endpoints.
type PaymentHandler struct {
	svc   PaymentServicer
	store PaymentReadStore
	hub   *ws.Hub
}

// NewPaymentHandler creates a new PaymentHandler. hub may be nil in tests.
func NewPaymentHandler(svc PaymentServicer, store PaymentReadStore, hub *ws.Hub) *PaymentHandler {
	return &PaymentHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Process)
	r.Post("/split-preview", h.SplitPreview)
}

// RegisterAccountRoute exposes the table account lookup; it lives under
// /tables/{id}/account but belongs to the payment flow.
func (h *PaymentHandler) RegisterAccountRoute(r chi.Router) {
	r.Get("/{id}/account", h.TableAccount)
}

// --- Request / Response types ---

type shareItemRefRequest struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
}

type splitRequest struct {
	TableID    string                  `json:"table_id"`
	ShareCount int                     `json:"share_count"`
	Shares     [][]shareItemRefRequest `json:"shares"`
}

type processPaymentRequest struct {
	TableID    string        `json:"table_id"`
	Method     string        `json:"method"`
	TipAmount  *string       `json:"tip_amount"`
	TipPercent *string       `json:"tip_percent"`
	Split      *splitRequest `json:"split"`
}

type tipSuggestionResponse struct {
	Percent      string `json:"percent"`
	Amount       string `json:"amount"`
	TotalWithTip string `json:"total_with_tip"`
}

type tableAccountResponse struct {
	Table       tableResponse           `json:"table"`
	Orders      []orderResponse         `json:"orders"`
	Subtotal    string                  `json:"subtotal"`
	TaxAmount   string                  `json:"tax_amount"`
	TotalAmount string                  `json:"total_amount"`
	Suggestions []tipSuggestionResponse `json:"tip_suggestions"`
	AllowCustom bool                    `json:"allow_custom_tip"`
}

type shareItemResponse struct {
	OrderID  uuid.UUID `json:"order_id"`
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Subtotal string    `json:"subtotal"`
}

type shareResponse struct {
	Items    []shareItemResponse `json:"items"`
	Subtotal string              `json:"subtotal"`
	Tax      string              `json:"tax"`
	Tip      string              `json:"tip"`
	Total    string              `json:"total"`
}

type paymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	TableID     uuid.UUID       `json:"table_id"`
	Method      string          `json:"method"`
	Subtotal    string          `json:"subtotal"`
	TaxAmount   string          `json:"tax_amount"`
	TipAmount   string          `json:"tip_amount"`
	TipPercent  string          `json:"tip_percent"`
	TipCustom   bool            `json:"tip_custom"`
	TotalAmount string          `json:"total_amount"`
	IsSplit     bool            `json:"is_split"`
	ShareCount  *int32          `json:"share_count"`
	Shares      json.RawMessage `json:"shares,omitempty"`
	Status      string          `json:"status"`
	ProcessedBy uuid.UUID       `json:"processed_by"`
	OrderIDs    []uuid.UUID     `json:"order_ids,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type paymentTotalsResponse struct {
	PaymentCount int64  `json:"payment_count"`
	SalesTotal   string `json:"sales_total"`
	TipTotal     string `json:"tip_total"`
}

type paymentListResponse struct {
	Payments []paymentResponse     `json:"payments"`
	Totals   paymentTotalsResponse `json:"totals"`
}

func toPaymentResponse(p database.Payment, orderIDs []uuid.UUID) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		TableID:     p.TableID,
		Method:      p.Method,
		Subtotal:    numericToString(p.Subtotal),
		TaxAmount:   numericToString(p.TaxAmount),
		TipAmount:   numericToString(p.TipAmount),
		TipPercent:  numericToString(p.TipPercent),
		TipCustom:   p.TipCustom,
		TotalAmount: numericToString(p.TotalAmount),
		IsSplit:     p.IsSplit,
		Status:      p.Status,
		ProcessedBy: p.ProcessedBy,
		OrderIDs:    orderIDs,
		CreatedAt:   p.CreatedAt,
	}
	if p.ShareCount.Valid {
		resp.ShareCount = &p.ShareCount.Int32
	}
	if len(p.Shares) > 0 {
		resp.Shares = json.RawMessage(p.Shares)
	}
	return resp
}

func toShareResponses(shares []billing.Share) []shareResponse {
	resp := make([]shareResponse, len(shares))
	for i, s := range shares {
		items := make([]shareItemResponse, len(s.Items))
		for j, item := range s.Items {
			items[j] = shareItemResponse{
				OrderID:  item.OrderID,
				ItemID:   item.ItemID,
				Name:     item.Name,
				Subtotal: item.Subtotal.StringFixed(2),
			}
		}
		resp[i] = shareResponse{
			Items:    items,
			Subtotal: s.Subtotal.StringFixed(2),
			Tax:      s.Tax.StringFixed(2),
			Tip:      s.Tip.StringFixed(2),
			Total:    s.Total.StringFixed(2),
		}
	}
	return resp
}

func toSplitRequest(req *splitRequest) (service.SplitRequest, error) {
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return service.SplitRequest{}, errors.New("invalid table_id")
	}
	out := service.SplitRequest{
		TableID:    tableID,
		ShareCount: req.ShareCount,
		Shares:     make([][]service.ShareItemRef, len(req.Shares)),
	}
	for i, refs := range req.Shares {
		for _, ref := range refs {
			orderID, err := uuid.Parse(ref.OrderID)
			if err != nil {
				return service.SplitRequest{}, errors.New("invalid order_id in shares")
			}
			itemID, err := uuid.Parse(ref.ItemID)
			if err != nil {
				return service.SplitRequest{}, errors.New("invalid item_id in shares")
			}
			out.Shares[i] = append(out.Shares[i], service.ShareItemRef{OrderID: orderID, ItemID: itemID})
		}
	}
	return out, nil
}

// respondPaymentError maps payment service errors onto HTTP statuses.
func respondPaymentError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTableNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoActiveOrders):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrNegativeTip),
		errors.Is(err, service.ErrCustomTipDisabled),
		errors.Is(err, service.ErrUnknownShareItem),
		errors.Is(err, billing.ErrShareCountRange),
		errors.Is(err, billing.ErrShareCountMismatch):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		respondInternalError(w)
	}
}

// --- Handlers ---

// TableAccount returns the running bill for a table: open orders, totals,
// and tip suggestions.
func (h *PaymentHandler) TableAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	account, err := h.svc.GetTableAccount(r.Context(), id)
	if err != nil {
		respondPaymentError(w, "table account", err)
		return
	}

	resp := tableAccountResponse{
		Table:       toTableResponse(account.Table),
		Orders:      make([]orderResponse, len(account.Orders)),
		Subtotal:    account.Subtotal.StringFixed(2),
		TaxAmount:   account.Tax.StringFixed(2),
		TotalAmount: account.Total.StringFixed(2),
		AllowCustom: account.AllowCustom,
	}
	for i, or := range account.Orders {
		resp.Orders[i] = toOrderResponse(or.Order, or.Items)
	}
	for _, s := range account.Suggestions {
		resp.Suggestions = append(resp.Suggestions, tipSuggestionResponse{
			Percent:      s.Percent.StringFixed(2),
			Amount:       s.Amount.StringFixed(2),
			TotalWithTip: s.TotalWithTip.StringFixed(2),
		})
	}

	respond(w, http.StatusOK, "", resp)
}

// SplitPreview prices a proposed bill split without settling anything.
func (h *PaymentHandler) SplitPreview(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq, err := toSplitRequest(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	shares, err := h.svc.PreviewSplit(r.Context(), svcReq)
	if err != nil {
		respondPaymentError(w, "split preview", err)
		return
	}

	respond(w, http.StatusOK, "", toShareResponses(shares))
}

// Process settles a table: one payment covering every open order.
func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	svcReq := service.ProcessPaymentRequest{
		TableID:     tableID,
		Method:      req.Method,
		ProcessedBy: claims.UserID,
	}
	if req.TipAmount != nil {
		amount, err := decimal.NewFromString(*req.TipAmount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid tip_amount")
			return
		}
		svcReq.TipAmount = amount
		svcReq.HasTip = true
	}
	if req.TipPercent != nil {
		pct, err := decimal.NewFromString(*req.TipPercent)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid tip_percent")
			return
		}
		svcReq.TipPercent = pct
		svcReq.HasPercent = true
	}
	if req.Split != nil {
		split, err := toSplitRequest(req.Split)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		split.TableID = tableID
		svcReq.Split = &split
	}

	result, err := h.svc.ProcessPayment(r.Context(), svcReq)
	if err != nil {
		respondPaymentError(w, "process payment", err)
		return
	}

	orderIDs := make([]uuid.UUID, len(result.Orders))
	for i, o := range result.Orders {
		orderIDs[i] = o.ID
	}
	resp := toPaymentResponse(result.Payment, orderIDs)

	if h.hub != nil {
		if event, err := ws.NewEvent("payment.processed", resp); err == nil {
			h.hub.Broadcast(event)
		}
	}

	respond(w, http.StatusCreated, "payment processed", resp)
}

// List returns payment history filtered by ?method=, ?start_date=,
// ?end_date= (RFC 3339), paged by ?limit= and ?offset=.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := database.ListPaymentsParams{Limit: 50}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		params.Limit = int32(n)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}
		params.Offset = int32(n)
	}
	if raw := q.Get("method"); raw != "" {
		params.Method = pgtype.Text{String: raw, Valid: true}
	}
	if raw := q.Get("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	payments, err := h.store.ListPayments(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		respondInternalError(w)
		return
	}

	totals, err := h.store.GetPaymentTotals(r.Context(), database.PaymentTotalsParams{
		Method:    params.Method,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
	})
	if err != nil {
		log.Printf("ERROR: list payments: totals: %v", err)
		respondInternalError(w)
		return
	}

	list := make([]paymentResponse, len(payments))
	for i, p := range payments {
		list[i] = toPaymentResponse(p, nil)
	}

	respond(w, http.StatusOK, "", paymentListResponse{
		Payments: list,
		Totals: paymentTotalsResponse{
			PaymentCount: totals.PaymentCount,
			SalesTotal:   numericToString(totals.SalesTotal),
			TipTotal:     numericToString(totals.TipTotal),
		},
	})
}

// Get returns a single payment with the orders it settled.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	payment, err := h.store.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		respondInternalError(w)
		return
	}

	orderIDs, err := h.store.ListPaymentOrderIDs(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: get payment orders: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toPaymentResponse(payment, orderIDs))
}

var _ PaymentServicer = (*service.PaymentService)(nil)
