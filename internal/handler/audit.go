package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cantina-pos/api/internal/database"
)

// AuditStore defines the database methods needed by the audit handler.
// Satisfied by *database.Queries; narrow interface for testability.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error)
	ListAuditEntries(ctx context.Context, arg database.ListAuditEntriesParams) ([]database.AuditEntry, error)
}

// Auditor records privileged actions. Implemented by *AuditHandler; nil
// disables recording.
type Auditor interface {
	Record(ctx context.Context, userID uuid.UUID, action, entityType, entityID, detail string)
}

// auditRecord is the nil-safe way for handlers to write the trail.
func auditRecord(a Auditor, ctx context.Context, userID uuid.UUID, action, entityType, entityID, detail string) {
	if a == nil {
		return
	}
	a.Record(ctx, userID, action, entityType, entityID, detail)
}

// AuditHandler serves the audit trail of privileged actions.
type AuditHandler struct {
	store AuditStore
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(store AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// RegisterRoutes registers audit endpoints on the given Chi router.
func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// Record appends an audit entry. It never fails the caller: an action that
// went through stays through even if its trail write is lost.
func (h *AuditHandler) Record(ctx context.Context, userID uuid.UUID, action, entityType, entityID, detail string) {
	eid := pgtype.Text{}
	if entityID != "" {
		eid = pgtype.Text{String: entityID, Valid: true}
	}
	det := pgtype.Text{}
	if detail != "" {
		det = pgtype.Text{String: detail, Valid: true}
	}
	if _, err := h.store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   eid,
		Detail:     det,
	}); err != nil {
		log.Printf("ERROR: audit %s %s: %v", action, entityType, err)
	}
}

type auditEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   *string   `json:"entity_id"`
	Detail     *string   `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// List returns audit entries filtered by ?user_id=, ?action=, ?start_date=,
// ?end_date= (RFC 3339), paged by ?limit= and ?offset=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := database.ListAuditEntriesParams{Limit: 50}
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
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid user_id filter")
			return
		}
		params.UserID = pgtype.UUID{Bytes: id, Valid: true}
	}
	if raw := q.Get("action"); raw != "" {
		params.Action = pgtype.Text{String: raw, Valid: true}
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

	entries, err := h.store.ListAuditEntries(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list audit entries: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = auditEntryResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			Action:     e.Action,
			EntityType: e.EntityType,
			CreatedAt:  e.CreatedAt,
		}
		if e.EntityID.Valid {
			resp[i].EntityID = &e.EntityID.String
		}
		if e.Detail.Valid {
			resp[i].Detail = &e.Detail.String
		}
	}

	respond(w, http.StatusOK, "", resp)
}
