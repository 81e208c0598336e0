package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/middleware"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetSettings(ctx context.Context) (database.Settings, error)
	InsertDefaultSettings(ctx context.Context) error
	UpdateGeneralSettings(ctx context.Context, arg database.UpdateGeneralSettingsParams) (database.Settings, error)
	UpdateTaxSettings(ctx context.Context, arg database.UpdateTaxSettingsParams) (database.Settings, error)
	UpdateTipSettings(ctx context.Context, arg database.UpdateTipSettingsParams) (database.Settings, error)
	UpdateNotificationSettings(ctx context.Context, arg database.UpdateNotificationSettingsParams) (database.Settings, error)
}

// SettingsHandler handles the singleton restaurant configuration.
type SettingsHandler struct {
	store   SettingsStore
	auditor Auditor
}

// NewSettingsHandler creates a new SettingsHandler. auditor may be nil in
// tests.
func NewSettingsHandler(store SettingsStore, auditor Auditor) *SettingsHandler {
	return &SettingsHandler{store: store, auditor: auditor}
}

func (h *SettingsHandler) audit(r *http.Request, section string) {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		auditRecord(h.auditor, r.Context(), claims.UserID, "settings.update", "settings", section, "")
	}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/general", h.UpdateGeneral)
	r.Put("/tax", h.UpdateTax)
	r.Put("/tips", h.UpdateTips)
	r.Put("/notifications", h.UpdateNotifications)
}

// --- Request / Response types ---

type updateGeneralSettingsRequest struct {
	RestaurantName string `json:"restaurant_name"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	TableCount     int32  `json:"table_count"`
}

type updateTaxSettingsRequest struct {
	TaxPercent    string `json:"tax_percent"`
	TaxApplyToAll bool   `json:"tax_apply_to_all"`
}

type updateTipSettingsRequest struct {
	TipOption1     string `json:"tip_option_1"`
	TipOption2     string `json:"tip_option_2"`
	TipOption3     string `json:"tip_option_3"`
	TipAllowCustom bool   `json:"tip_allow_custom"`
}

type updateNotificationSettingsRequest struct {
	NotifyNewOrder   bool `json:"notify_new_order"`
	NotifyOrderReady bool `json:"notify_order_ready"`
}

type settingsResponse struct {
	RestaurantName   string    `json:"restaurant_name"`
	Address          *string   `json:"address"`
	Phone            *string   `json:"phone"`
	TaxPercent       string    `json:"tax_percent"`
	TaxApplyToAll    bool      `json:"tax_apply_to_all"`
	TipOption1       string    `json:"tip_option_1"`
	TipOption2       string    `json:"tip_option_2"`
	TipOption3       string    `json:"tip_option_3"`
	TipAllowCustom   bool      `json:"tip_allow_custom"`
	NotifyNewOrder   bool      `json:"notify_new_order"`
	NotifyOrderReady bool      `json:"notify_order_ready"`
	TableCount       int32     `json:"table_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toSettingsResponse(s database.Settings) settingsResponse {
	resp := settingsResponse{
		RestaurantName:   s.RestaurantName,
		TaxPercent:       numericToString(s.TaxPercent),
		TaxApplyToAll:    s.TaxApplyToAll,
		TipOption1:       numericToString(s.TipOption1),
		TipOption2:       numericToString(s.TipOption2),
		TipOption3:       numericToString(s.TipOption3),
		TipAllowCustom:   s.TipAllowCustom,
		NotifyNewOrder:   s.NotifyNewOrder,
		NotifyOrderReady: s.NotifyOrderReady,
		TableCount:       s.TableCount,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.Address.Valid {
		resp.Address = &s.Address.String
	}
	if s.Phone.Valid {
		resp.Phone = &s.Phone.String
	}
	return resp
}

// parsePercent parses a percentage string and checks it lands in [0, 100].
func parsePercent(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return pgtype.Numeric{}, errors.New("percent must be between 0 and 100")
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// --- Handlers ---

// Get returns the configuration, creating the default row on first read.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if errors.Is(err, pgx.ErrNoRows) {
		if err := h.store.InsertDefaultSettings(r.Context()); err != nil {
			log.Printf("ERROR: init settings: %v", err)
			respondInternalError(w)
			return
		}
		settings, err = h.store.GetSettings(r.Context())
	}
	if err != nil {
		log.Printf("ERROR: get settings: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toSettingsResponse(settings))
}

// UpdateGeneral sets the restaurant identity and floor size.
func (h *SettingsHandler) UpdateGeneral(w http.ResponseWriter, r *http.Request) {
	var req updateGeneralSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RestaurantName == "" {
		respondError(w, http.StatusBadRequest, "restaurant_name is required")
		return
	}
	if req.TableCount < 0 {
		respondError(w, http.StatusBadRequest, "table_count must be >= 0")
		return
	}

	address := pgtype.Text{}
	if req.Address != "" {
		address = pgtype.Text{String: req.Address, Valid: true}
	}
	phone := pgtype.Text{}
	if req.Phone != "" {
		phone = pgtype.Text{String: req.Phone, Valid: true}
	}

	settings, err := h.store.UpdateGeneralSettings(r.Context(), database.UpdateGeneralSettingsParams{
		RestaurantName: req.RestaurantName,
		Address:        address,
		Phone:          phone,
		TableCount:     req.TableCount,
	})
	if err != nil {
		log.Printf("ERROR: update general settings: %v", err)
		respondInternalError(w)
		return
	}

	h.audit(r, "general")

	respond(w, http.StatusOK, "settings updated", toSettingsResponse(settings))
}

// UpdateTax sets the tax percent applied to new orders. Existing orders
// keep the totals they were priced with.
func (h *SettingsHandler) UpdateTax(w http.ResponseWriter, r *http.Request) {
	var req updateTaxSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	taxPercent, err := parsePercent(req.TaxPercent)
	if err != nil {
		respondError(w, http.StatusBadRequest, "tax_percent must be between 0 and 100")
		return
	}

	settings, err := h.store.UpdateTaxSettings(r.Context(), database.UpdateTaxSettingsParams{
		TaxPercent:    taxPercent,
		TaxApplyToAll: req.TaxApplyToAll,
	})
	if err != nil {
		log.Printf("ERROR: update tax settings: %v", err)
		respondInternalError(w)
		return
	}

	h.audit(r, "tax")

	respond(w, http.StatusOK, "settings updated", toSettingsResponse(settings))
}

// UpdateTips sets the three suggested tip percents and the custom-tip flag.
func (h *SettingsHandler) UpdateTips(w http.ResponseWriter, r *http.Request) {
	var req updateTipSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	options := [3]pgtype.Numeric{}
	for i, raw := range []string{req.TipOption1, req.TipOption2, req.TipOption3} {
		pct, err := parsePercent(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "tip options must be between 0 and 100")
			return
		}
		options[i] = pct
	}

	settings, err := h.store.UpdateTipSettings(r.Context(), database.UpdateTipSettingsParams{
		TipOption1:     options[0],
		TipOption2:     options[1],
		TipOption3:     options[2],
		TipAllowCustom: req.TipAllowCustom,
	})
	if err != nil {
		log.Printf("ERROR: update tip settings: %v", err)
		respondInternalError(w)
		return
	}

	h.audit(r, "tips")

	respond(w, http.StatusOK, "settings updated", toSettingsResponse(settings))
}

// UpdateNotifications sets the notification toggles.
func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req updateNotificationSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.store.UpdateNotificationSettings(r.Context(), database.UpdateNotificationSettingsParams{
		NotifyNewOrder:   req.NotifyNewOrder,
		NotifyOrderReady: req.NotifyOrderReady,
	})
	if err != nil {
		log.Printf("ERROR: update notification settings: %v", err)
		respondInternalError(w)
		return
	}

	h.audit(r, "notifications")

	respond(w, http.StatusOK, "settings updated", toSettingsResponse(settings))
}
