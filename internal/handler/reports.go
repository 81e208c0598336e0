package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cantina-pos/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, day time.Time) (database.DailySalesRow, error)
	ListTopItems(ctx context.Context, arg database.ListTopItemsParams) ([]database.TopItemRow, error)
	GetKitchenStats(ctx context.Context) (database.KitchenStatsRow, error)
}

// ReportsHandler handles the dashboard report endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
	r.Get("/top-items", h.TopItems)
}

// --- Response types ---

type dailyReportResponse struct {
	Date           string   `json:"date"`
	PaymentCount   int64    `json:"payment_count"`
	OrderCount     int64    `json:"order_count"`
	SalesTotal     string   `json:"sales_total"`
	TipTotal       string   `json:"tip_total"`
	PendingCount   int64    `json:"pending_count"`
	PreparingCount int64    `json:"preparing_count"`
	ReadyCount     int64    `json:"ready_count"`
	AvgPrepMinutes *float64 `json:"avg_prep_minutes"`
}

type topItemResponse struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Revenue  string `json:"revenue"`
}

// --- Handlers ---

// Daily returns sales totals for one day (?date=YYYY-MM-DD, default today)
// plus a snapshot of the current kitchen queues.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day := time.Now().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	sales, err := h.store.GetDailySales(r.Context(), day)
	if err != nil {
		log.Printf("ERROR: daily report: sales: %v", err)
		respondInternalError(w)
		return
	}

	kitchen, err := h.store.GetKitchenStats(r.Context())
	if err != nil {
		log.Printf("ERROR: daily report: kitchen stats: %v", err)
		respondInternalError(w)
		return
	}

	resp := dailyReportResponse{
		Date:           day.Format("2006-01-02"),
		PaymentCount:   sales.PaymentCount,
		OrderCount:     sales.OrderCount,
		SalesTotal:     numericToString(sales.SalesTotal),
		TipTotal:       numericToString(sales.TipTotal),
		PendingCount:   kitchen.PendingCount,
		PreparingCount: kitchen.PreparingCount,
		ReadyCount:     kitchen.ReadyCount,
	}
	if kitchen.AvgPrepMinutes.Valid {
		resp.AvgPrepMinutes = &kitchen.AvgPrepMinutes.Float64
	}

	respond(w, http.StatusOK, "", resp)
}

// TopItems returns the best sellers since ?days= ago (default 7), capped
// at ?limit= rows (default 10).
func (h *ReportsHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	limit := int32(10)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = int32(n)
	}

	rows, err := h.store.ListTopItems(r.Context(), database.ListTopItemsParams{
		Since: time.Now().AddDate(0, 0, -days),
		Limit: limit,
	})
	if err != nil {
		log.Printf("ERROR: top items report: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]topItemResponse, len(rows))
	for i, row := range rows {
		resp[i] = topItemResponse{
			Name:     row.Name,
			Quantity: row.Quantity,
			Revenue:  numericToString(row.Revenue),
		}
	}

	respond(w, http.StatusOK, "", resp)
}
