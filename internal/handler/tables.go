package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/service"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	SoftDeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	CountTables(ctx context.Context) (int64, error)
	CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	GetSettings(ctx context.Context) (database.Settings, error)
}

// NewTableStore builds a TableStore bound to the given connection or
// transaction.
type NewTableStore func(db database.DBTX) TableStore

// TableHandler handles floor table endpoints. pool and newStore exist for
// bulk initialization, which creates all missing tables in one transaction.
type TableHandler struct {
	pool     service.TxBeginner
	store    TableStore
	newStore NewTableStore
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(pool service.TxBeginner, store TableStore, newStore NewTableStore) *TableHandler {
	return &TableHandler{pool: pool, store: store, newStore: newStore}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/init", h.Init)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.SetStatus)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createTableRequest struct {
	Label    string `json:"label"`
	Capacity int32  `json:"capacity"`
	Section  string `json:"section"`
}

type updateTableRequest struct {
	Label    string `json:"label"`
	Capacity int32  `json:"capacity"`
	Section  string `json:"section"`
}

type setTableStatusRequest struct {
	Status string `json:"status"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Capacity  int32     `json:"capacity"`
	Section   *string   `json:"section"`
	Status    string    `json:"status"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTableResponse(t database.Table) tableResponse {
	resp := tableResponse{
		ID:        t.ID,
		Label:     t.Label,
		Capacity:  t.Capacity,
		Status:    t.Status,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Section.Valid {
		resp.Section = &t.Section.String
	}
	return resp
}

func isValidTableStatus(status string) bool {
	switch status {
	case enum.TableStatusFree, enum.TableStatusOccupied,
		enum.TableStatusReserved, enum.TableStatusCleaning:
		return true
	}
	return false
}

// --- Handlers ---

// List returns all active tables ordered by label.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}

	respond(w, http.StatusOK, "", resp)
}

// Get returns a single table.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "table not found")
			return
		}
		log.Printf("ERROR: get table: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toTableResponse(table))
}

// Create adds a single table to the floor. New tables start FREE.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Label == "" {
		respondError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Capacity < 1 {
		respondError(w, http.StatusBadRequest, "capacity must be at least 1")
		return
	}

	section := pgtype.Text{}
	if req.Section != "" {
		section = pgtype.Text{String: req.Section, Valid: true}
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Label:    req.Label,
		Capacity: req.Capacity,
		Section:  section,
		Status:   enum.TableStatusFree,
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "table label already exists")
			return
		}
		log.Printf("ERROR: create table: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusCreated, "table created", toTableResponse(table))
}

// Init bulk-creates numbered tables up to the table_count configured in
// settings, all in one transaction. It only tops up: existing tables are
// never touched, so running it twice is safe.
func (h *TableHandler) Init(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		log.Printf("ERROR: init tables: begin tx: %v", err)
		respondInternalError(w)
		return
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	settings, err := store.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusConflict, "settings not configured")
			return
		}
		log.Printf("ERROR: init tables: get settings: %v", err)
		respondInternalError(w)
		return
	}

	existing, err := store.CountTables(ctx)
	if err != nil {
		log.Printf("ERROR: init tables: count: %v", err)
		respondInternalError(w)
		return
	}

	target := int64(settings.TableCount)
	if existing >= target {
		respond(w, http.StatusOK, "floor already at configured table count", []tableResponse{})
		return
	}

	created := make([]tableResponse, 0, target-existing)
	for n := existing + 1; n <= target; n++ {
		table, err := store.CreateTable(ctx, database.CreateTableParams{
			Label:    fmt.Sprintf("Mesa %d", n),
			Capacity: 4,
			Status:   enum.TableStatusFree,
		})
		if err != nil {
			log.Printf("ERROR: init tables: create table %d: %v", n, err)
			respondInternalError(w)
			return
		}
		created = append(created, toTableResponse(table))
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("ERROR: init tables: commit: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusCreated, fmt.Sprintf("created %d tables", len(created)), created)
}

// Update modifies a table's label, capacity, or section.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	var req updateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Label == "" {
		respondError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Capacity < 1 {
		respondError(w, http.StatusBadRequest, "capacity must be at least 1")
		return
	}

	section := pgtype.Text{}
	if req.Section != "" {
		section = pgtype.Text{String: req.Section, Valid: true}
	}

	table, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:       id,
		Label:    req.Label,
		Capacity: req.Capacity,
		Section:  section,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "table not found")
			return
		}
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "table label already exists")
			return
		}
		log.Printf("ERROR: update table: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "table updated", toTableResponse(table))
}

// SetStatus manually overrides a table's status, for walk-ins and for
// marking a cleaned table FREE. A table with open orders cannot be forced
// back to FREE.
func (h *TableHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	var req setTableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidTableStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "invalid table status")
		return
	}

	if req.Status == enum.TableStatusFree {
		open, err := h.store.CountActiveOrdersByTable(r.Context(), id)
		if err != nil {
			log.Printf("ERROR: set table status: count orders: %v", err)
			respondInternalError(w)
			return
		}
		if open > 0 {
			respondError(w, http.StatusConflict, "table has open orders")
			return
		}
	}

	table, err := h.store.UpdateTableStatus(r.Context(), database.UpdateTableStatusParams{
		ID:     id,
		Status: req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "table not found")
			return
		}
		log.Printf("ERROR: set table status: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "table status updated", toTableResponse(table))
}

// Delete soft-deletes a table. Tables with open orders cannot be removed.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	open, err := h.store.CountActiveOrdersByTable(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: delete table: count orders: %v", err)
		respondInternalError(w)
		return
	}
	if open > 0 {
		respondError(w, http.StatusConflict, "table has open orders")
		return
	}

	if _, err := h.store.SoftDeleteTable(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "table not found")
			return
		}
		log.Printf("ERROR: delete table: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "table deleted", nil)
}
