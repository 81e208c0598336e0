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

	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/middleware"
)

// ReservationStore defines the database methods needed by reservation
// handlers. Satisfied by *database.Queries; narrow interface for testability.
type ReservationStore interface {
	ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error)
	UpdateReservation(ctx context.Context, arg database.UpdateReservationParams) (database.Reservation, error)
	UpdateReservationStatus(ctx context.Context, arg database.UpdateReservationStatusParams) (database.Reservation, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
}

// ReservationHandler handles reservation endpoints.
type ReservationHandler struct {
	store ReservationStore
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(store ReservationStore) *ReservationHandler {
	return &ReservationHandler{store: store}
}

// RegisterRoutes registers reservation endpoints on the given Chi router.
func (h *ReservationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/seat", h.Seat)
	r.Post("/{id}/finish", h.Finish)
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createReservationRequest struct {
	TableID       string `json:"table_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	PartySize     int32  `json:"party_size"`
	ReservedAt    string `json:"reserved_at"`
	Notes         string `json:"notes"`
}

type updateReservationRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	PartySize     int32  `json:"party_size"`
	ReservedAt    string `json:"reserved_at"`
	Notes         string `json:"notes"`
}

type reservationResponse struct {
	ID            uuid.UUID `json:"id"`
	TableID       uuid.UUID `json:"table_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone *string   `json:"customer_phone"`
	PartySize     int32     `json:"party_size"`
	ReservedAt    time.Time `json:"reserved_at"`
	Status        string    `json:"status"`
	Notes         *string   `json:"notes"`
	CreatedBy     uuid.UUID `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toReservationResponse(res database.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:           res.ID,
		TableID:      res.TableID,
		CustomerName: res.CustomerName,
		PartySize:    res.PartySize,
		ReservedAt:   res.ReservedAt,
		Status:       res.Status,
		CreatedBy:    res.CreatedBy,
		CreatedAt:    res.CreatedAt,
		UpdatedAt:    res.UpdatedAt,
	}
	if res.CustomerPhone.Valid {
		resp.CustomerPhone = &res.CustomerPhone.String
	}
	if res.Notes.Valid {
		resp.Notes = &res.Notes.String
	}
	return resp
}

// --- Handlers ---

// List returns reservations filtered by ?status=, ?start_date=, ?end_date=
// (RFC 3339), ordered by reservation time.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := database.ListReservationsParams{}
	if raw := q.Get("status"); raw != "" {
		params.Status = pgtype.Text{String: raw, Valid: true}
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

	reservations, err := h.store.ListReservations(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list reservations: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]reservationResponse, len(reservations))
	for i, res := range reservations {
		resp[i] = toReservationResponse(res)
	}

	respond(w, http.StatusOK, "", resp)
}

// Get returns a single reservation.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid reservation ID")
		return
	}

	res, err := h.store.GetReservation(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "reservation not found")
			return
		}
		log.Printf("ERROR: get reservation: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toReservationResponse(res))
}

// Create books a table. The party must fit the table's capacity, and a
// FREE table is flipped to RESERVED right away.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CustomerName == "" {
		respondError(w, http.StatusBadRequest, "customer_name is required")
		return
	}
	if req.PartySize < 1 {
		respondError(w, http.StatusBadRequest, "party_size must be at least 1")
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	reservedAt, err := time.Parse(time.RFC3339, req.ReservedAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid reserved_at, expected RFC 3339")
		return
	}

	table, err := h.store.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "table not found")
			return
		}
		log.Printf("ERROR: create reservation: get table: %v", err)
		respondInternalError(w)
		return
	}

	if req.PartySize > table.Capacity {
		respondError(w, http.StatusBadRequest, "party size exceeds table capacity")
		return
	}

	phone := pgtype.Text{}
	if req.CustomerPhone != "" {
		phone = pgtype.Text{String: req.CustomerPhone, Valid: true}
	}
	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	res, err := h.store.CreateReservation(r.Context(), database.CreateReservationParams{
		TableID:       tableID,
		CustomerName:  req.CustomerName,
		CustomerPhone: phone,
		PartySize:     req.PartySize,
		ReservedAt:    reservedAt,
		Status:        enum.ReservationStatusConfirmed,
		Notes:         notes,
		CreatedBy:     claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create reservation: %v", err)
		respondInternalError(w)
		return
	}

	// Table sync is best effort; the reservation stands either way.
	if table.Status == enum.TableStatusFree {
		if _, err := h.store.UpdateTableStatus(r.Context(), database.UpdateTableStatusParams{
			ID:     table.ID,
			Status: enum.TableStatusReserved,
		}); err != nil {
			log.Printf("ERROR: sync table %s to RESERVED: %v", table.Label, err)
		}
	}

	respond(w, http.StatusCreated, "reservation created", toReservationResponse(res))
}

// Update modifies an existing reservation's details, not its status.
func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid reservation ID")
		return
	}

	var req updateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CustomerName == "" {
		respondError(w, http.StatusBadRequest, "customer_name is required")
		return
	}
	if req.PartySize < 1 {
		respondError(w, http.StatusBadRequest, "party_size must be at least 1")
		return
	}

	reservedAt, err := time.Parse(time.RFC3339, req.ReservedAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid reserved_at, expected RFC 3339")
		return
	}

	current, err := h.store.GetReservation(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "reservation not found")
			return
		}
		log.Printf("ERROR: update reservation: get: %v", err)
		respondInternalError(w)
		return
	}
	if current.Status != enum.ReservationStatusConfirmed {
		respondError(w, http.StatusConflict, "only confirmed reservations can be edited")
		return
	}

	table, err := h.store.GetTable(r.Context(), current.TableID)
	if err == nil && req.PartySize > table.Capacity {
		respondError(w, http.StatusBadRequest, "party size exceeds table capacity")
		return
	}

	phone := pgtype.Text{}
	if req.CustomerPhone != "" {
		phone = pgtype.Text{String: req.CustomerPhone, Valid: true}
	}
	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	res, err := h.store.UpdateReservation(r.Context(), database.UpdateReservationParams{
		ID:            id,
		CustomerName:  req.CustomerName,
		CustomerPhone: phone,
		PartySize:     req.PartySize,
		ReservedAt:    reservedAt,
		Notes:         notes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "reservation not found")
			return
		}
		log.Printf("ERROR: update reservation: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "reservation updated", toReservationResponse(res))
}

// Seat marks the party as arrived: reservation CONFIRMED to SEATED, table
// to OCCUPIED.
func (h *ReservationHandler) Seat(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, enum.ReservationStatusConfirmed, enum.ReservationStatusSeated,
		enum.TableStatusOccupied, "reservation seated")
}

// Finish closes out a seated reservation. The table is left to the order
// flow, which controls OCCUPIED and CLEANING.
func (h *ReservationHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, enum.ReservationStatusSeated, enum.ReservationStatusFinished,
		"", "reservation finished")
}

// Cancel drops a confirmed reservation and frees the table if it was only
// held by this reservation.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, enum.ReservationStatusConfirmed, enum.ReservationStatusCancelled,
		enum.TableStatusFree, "reservation cancelled")
}

// transition performs a guarded reservation status change. tableStatus, if
// not empty, is applied to the table afterwards on a best-effort basis;
// FREE is only applied when the table is still RESERVED.
func (h *ReservationHandler) transition(w http.ResponseWriter, r *http.Request, from, to, tableStatus, message string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid reservation ID")
		return
	}

	if _, err := h.store.GetReservation(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "reservation not found")
			return
		}
		log.Printf("ERROR: reservation transition: get: %v", err)
		respondInternalError(w)
		return
	}

	res, err := h.store.UpdateReservationStatus(r.Context(), database.UpdateReservationStatusParams{
		ID:         id,
		Status:     to,
		FromStatus: from,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusConflict, "reservation is not "+from)
			return
		}
		log.Printf("ERROR: reservation transition: %v", err)
		respondInternalError(w)
		return
	}

	if tableStatus != "" {
		h.syncTable(r.Context(), res.TableID, tableStatus)
	}

	respond(w, http.StatusOK, message, toReservationResponse(res))
}

func (h *ReservationHandler) syncTable(ctx context.Context, tableID uuid.UUID, status string) {
	table, err := h.store.GetTable(ctx, tableID)
	if err != nil {
		log.Printf("ERROR: sync table after reservation: get table: %v", err)
		return
	}
	// A cancelled reservation only releases a table that is still held
	// for it; a walked-in OCCUPIED table stays as is.
	if status == enum.TableStatusFree && table.Status != enum.TableStatusReserved {
		return
	}
	if _, err := h.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     tableID,
		Status: status,
	}); err != nil {
		log.Printf("ERROR: sync table %s to %s: %v", table.Label, status, err)
	}
}
