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

	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/middleware"
	"github.com/cantina-pos/api/internal/service"
	"github.com/cantina-pos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	EditOrder(ctx context.Context, req service.EditOrderRequest) (*service.OrderResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus string) (database.Order, error)
	VoidOrder(ctx context.Context, orderID uuid.UUID) (database.Order, error)
}

// OrderReadStore defines the read-only database methods order handlers use
// directly, bypassing the service. Satisfied by *database.Queries.
type OrderReadStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// OrderHandler handles order lifecycle endpoints. Writes go through the
// order service; reads hit the store directly.
type OrderHandler struct {
	svc     OrderServicer
	store   OrderReadStore
	hub     *ws.Hub
	auditor Auditor
}

// NewOrderHandler creates a new OrderHandler. hub and auditor may be nil
// in tests.
func NewOrderHandler(svc OrderServicer, store OrderReadStore, hub *ws.Hub, auditor Auditor) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub, auditor: auditor}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Edit)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/void", h.Void)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID string             `json:"table_id"`
	Notes   string             `json:"notes"`
	Items   []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type editOrderRequest struct {
	Notes string             `json:"notes"`
	Items []orderItemRequest `json:"items"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  string    `json:"unit_price"`
	Quantity   int32     `json:"quantity"`
	Notes      *string   `json:"notes"`
	Subtotal   string    `json:"subtotal"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	TableID     uuid.UUID           `json:"table_id"`
	Status      string              `json:"status"`
	Notes       *string             `json:"notes"`
	Subtotal    string              `json:"subtotal"`
	TaxAmount   string              `json:"tax_amount"`
	TotalAmount string              `json:"total_amount"`
	CreatedBy   uuid.UUID           `json:"created_by"`
	Items       []orderItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:         it.ID,
		MenuItemID: it.MenuItemID,
		Name:       it.Name,
		UnitPrice:  numericToString(it.UnitPrice),
		Quantity:   it.Quantity,
		Subtotal:   numericToString(it.Subtotal),
	}
	if it.Notes.Valid {
		resp.Notes = &it.Notes.String
	}
	return resp
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		TableID:     o.TableID,
		Status:      o.Status,
		Subtotal:    numericToString(o.Subtotal),
		TaxAmount:   numericToString(o.TaxAmount),
		TotalAmount: numericToString(o.TotalAmount),
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if items != nil {
		resp.Items = make([]orderItemResponse, len(items))
		for i, it := range items {
			resp.Items[i] = toOrderItemResponse(it)
		}
	}
	return resp
}

func toServiceItems(items []orderItemRequest) []service.CreateOrderItemRequest {
	out := make([]service.CreateOrderItemRequest, len(items))
	for i, it := range items {
		out[i] = service.CreateOrderItemRequest{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
		}
	}
	return out
}

// broadcast pushes an event to connected clients. A nil hub means no
// websocket layer is wired; marshal failures are logged only.
func (h *OrderHandler) broadcast(eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	event, err := ws.NewEvent(eventType, payload)
	if err != nil {
		log.Printf("ERROR: broadcast %s: %v", eventType, err)
		return
	}
	h.hub.Broadcast(event)
}

// respondOrderError maps order service errors onto HTTP statuses.
func respondOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTableNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOrderNotPending),
		errors.Is(err, service.ErrStatusConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrItemUnavailable),
		errors.Is(err, service.ErrNotesTooLong),
		errors.Is(err, service.ErrInvalidTableID),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		respondInternalError(w)
	}
}

// --- Handlers ---

// List returns orders filtered by ?status=, ?table_id=, ?start_date=,
// ?end_date= (RFC 3339), paged by ?limit= and ?offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := database.ListOrdersParams{Limit: 50}
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
	if raw := q.Get("status"); raw != "" {
		params.Status = pgtype.Text{String: raw, Valid: true}
	}
	if raw := q.Get("table_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid table_id filter")
			return
		}
		params.TableID = pgtype.UUID{Bytes: id, Valid: true}
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

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, nil)
	}

	respond(w, http.StatusOK, "", resp)
}

// Get returns a single order with its line items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		respondInternalError(w)
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: get order items: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toOrderResponse(order, items))
}

// Create opens a new order for a table.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableID:   req.TableID,
		CreatedBy: claims.UserID,
		Notes:     req.Notes,
		Items:     toServiceItems(req.Items),
	})
	if err != nil {
		respondOrderError(w, "create order", err)
		return
	}

	resp := toOrderResponse(result.Order, result.Items)
	h.broadcast("order.created", resp)
	respond(w, http.StatusCreated, "order created", resp)
}

// Edit replaces the items and notes of a pending order.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req editOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.EditOrder(r.Context(), service.EditOrderRequest{
		OrderID: id,
		Notes:   req.Notes,
		Items:   toServiceItems(req.Items),
	})
	if err != nil {
		respondOrderError(w, "edit order", err)
		return
	}

	resp := toOrderResponse(result.Order, result.Items)
	h.broadcast("order.updated", resp)
	respond(w, http.StatusOK, "order updated", resp)
}

// UpdateStatus advances an order through its lifecycle.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondOrderError(w, "update order status", err)
		return
	}

	resp := toOrderResponse(order, nil)
	h.broadcast("order.status_changed", resp)
	respond(w, http.StatusOK, "order status updated", resp)
}

// Cancel transitions an order to CANCELLED through the regular state
// machine, so delivered orders are rejected here.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, enum.OrderStatusCancelled)
	if err != nil {
		respondOrderError(w, "cancel order", err)
		return
	}

	resp := toOrderResponse(order, nil)
	h.broadcast("order.status_changed", resp)
	respond(w, http.StatusOK, "order cancelled", resp)
}

// Void removes an order from the books entirely, regardless of status.
// Routing puts this behind a manager-level permission.
func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.svc.VoidOrder(r.Context(), id)
	if err != nil {
		respondOrderError(w, "void order", err)
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		auditRecord(h.auditor, r.Context(), claims.UserID, "order.void", "order", id.String(), "")
	}

	resp := toOrderResponse(order, nil)
	h.broadcast("order.voided", resp)
	respond(w, http.StatusOK, "order voided", resp)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
