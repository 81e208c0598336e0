package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/service"
	"github.com/cantina-pos/api/internal/ws"
)

// KitchenStore defines the database methods needed by kitchen handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type KitchenStore interface {
	ListKitchenOrders(ctx context.Context) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetKitchenStats(ctx context.Context) (database.KitchenStatsRow, error)
}

// KitchenHandler serves the kitchen display: the open-order board plus
// one-tap status shortcuts.
type KitchenHandler struct {
	svc   OrderServicer
	store KitchenStore
	hub   *ws.Hub
}

// NewKitchenHandler creates a new KitchenHandler. hub may be nil in tests.
func NewKitchenHandler(svc OrderServicer, store KitchenStore, hub *ws.Hub) *KitchenHandler {
	return &KitchenHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers kitchen endpoints on the given Chi router.
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/board", h.Board)
	r.Get("/stats", h.Stats)
	r.Post("/orders/{id}/start", h.Start)
	r.Post("/orders/{id}/ready", h.Ready)
}

type kitchenBoardResponse struct {
	Pending   []orderResponse `json:"pending"`
	Preparing []orderResponse `json:"preparing"`
	Ready     []orderResponse `json:"ready"`
}

type kitchenStatsResponse struct {
	PendingCount   int64    `json:"pending_count"`
	PreparingCount int64    `json:"preparing_count"`
	ReadyCount     int64    `json:"ready_count"`
	AvgPrepMinutes *float64 `json:"avg_prep_minutes"`
}

// Board returns open orders grouped by status, oldest first, with line
// items so the kitchen can cook without a second request.
func (h *KitchenHandler) Board(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListKitchenOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: kitchen board: %v", err)
		respondInternalError(w)
		return
	}

	board := kitchenBoardResponse{
		Pending:   []orderResponse{},
		Preparing: []orderResponse{},
		Ready:     []orderResponse{},
	}
	for _, o := range orders {
		items, err := h.store.ListOrderItemsByOrder(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: kitchen board: order items: %v", err)
			respondInternalError(w)
			return
		}
		resp := toOrderResponse(o, items)
		switch o.Status {
		case enum.OrderStatusPending:
			board.Pending = append(board.Pending, resp)
		case enum.OrderStatusPreparing:
			board.Preparing = append(board.Preparing, resp)
		case enum.OrderStatusReady:
			board.Ready = append(board.Ready, resp)
		}
	}

	respond(w, http.StatusOK, "", board)
}

// Stats returns queue depths and the rolling average preparation time.
func (h *KitchenHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetKitchenStats(r.Context())
	if err != nil {
		log.Printf("ERROR: kitchen stats: %v", err)
		respondInternalError(w)
		return
	}

	resp := kitchenStatsResponse{
		PendingCount:   stats.PendingCount,
		PreparingCount: stats.PreparingCount,
		ReadyCount:     stats.ReadyCount,
	}
	if stats.AvgPrepMinutes.Valid {
		resp.AvgPrepMinutes = &stats.AvgPrepMinutes.Float64
	}

	respond(w, http.StatusOK, "", resp)
}

// Start marks an order PREPARING.
func (h *KitchenHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.shortcut(w, r, enum.OrderStatusPreparing, "order started")
}

// Ready marks an order READY for delivery.
func (h *KitchenHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.shortcut(w, r, enum.OrderStatusReady, "order ready")
}

func (h *KitchenHandler) shortcut(w http.ResponseWriter, r *http.Request, status, message string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, status)
	if err != nil {
		respondOrderError(w, "kitchen status update", err)
		return
	}

	resp := toOrderResponse(order, nil)
	if h.hub != nil {
		if event, err := ws.NewEvent("order.status_changed", resp); err == nil {
			h.hub.Broadcast(event)
		}
	}
	respond(w, http.StatusOK, message, resp)
}

var _ OrderServicer = (*service.OrderService)(nil)
