package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cantina-pos/api/internal/database"
)

// MenuItemStore defines the database methods needed by menu item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuItemStore interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, arg database.SetMenuItemAvailabilityParams) (database.MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// MenuItemHandler handles menu item CRUD and availability endpoints.
type MenuItemHandler struct {
	store MenuItemStore
}

// NewMenuItemHandler creates a new MenuItemHandler.
func NewMenuItemHandler(store MenuItemStore) *MenuItemHandler {
	return &MenuItemHandler{store: store}
}

// RegisterRoutes registers menu item endpoints on the given Chi router.
func (h *MenuItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/availability", h.SetAvailability)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createMenuItemRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	IsAvailable *bool  `json:"is_available"`
}

type updateMenuItemRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

type setAvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
	IsAvailable bool      `json:"is_available"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:          m.ID,
		CategoryID:  m.CategoryID,
		Name:        m.Name,
		Price:       numericToString(m.Price),
		IsAvailable: m.IsAvailable,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	return resp
}

// parsePrice converts a decimal string like "120.50" into a pgtype.Numeric,
// rejecting negative and malformed values.
func parsePrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errors.New("price cannot be negative")
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// --- Handlers ---

// List returns active menu items, optionally filtered by category and
// availability via ?category_id= and ?available=true.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListMenuItemsParams{
		AvailableOnly: r.URL.Query().Get("available") == "true",
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid category_id filter")
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	items, err := h.store.ListMenuItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}

	respond(w, http.StatusOK, "", resp)
}

// Get returns a single menu item.
func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "menu item not found")
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toMenuItemResponse(item))
}

// Create adds a new menu item to an existing category.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Price == "" || req.CategoryID == "" {
		respondError(w, http.StatusBadRequest, "name, price, and category_id are required")
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category_id")
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price")
		return
	}

	if _, err := h.store.GetCategory(r.Context(), categoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "category not found")
			return
		}
		log.Printf("ERROR: create menu item: get category: %v", err)
		respondInternalError(w)
		return
	}

	desc := pgtype.Text{}
	if req.Description != "" {
		desc = pgtype.Text{String: req.Description, Valid: true}
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: desc,
		Price:       price,
		IsAvailable: available,
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusCreated, "menu item created", toMenuItemResponse(item))
}

// Update modifies an existing menu item.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	var req updateMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Price == "" || req.CategoryID == "" {
		respondError(w, http.StatusBadRequest, "name, price, and category_id are required")
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category_id")
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price")
		return
	}

	if _, err := h.store.GetCategory(r.Context(), categoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "category not found")
			return
		}
		log.Printf("ERROR: update menu item: get category: %v", err)
		respondInternalError(w)
		return
	}

	desc := pgtype.Text{}
	if req.Description != "" {
		desc = pgtype.Text{String: req.Description, Valid: true}
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:          id,
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: desc,
		Price:       price,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "menu item not found")
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "menu item updated", toMenuItemResponse(item))
}

// SetAvailability flips the eighty-sixed flag without touching the rest of
// the item. Open orders keep their snapshotted copy either way.
func (h *MenuItemHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.SetMenuItemAvailability(r.Context(), database.SetMenuItemAvailabilityParams{
		ID:          id,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "menu item not found")
			return
		}
		log.Printf("ERROR: set menu item availability: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "availability updated", toMenuItemResponse(item))
}

// Delete soft-deletes a menu item.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	if _, err := h.store.SoftDeleteMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "menu item not found")
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "menu item deleted", nil)
}
