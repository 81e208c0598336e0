package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/cantina-pos/api/internal/auth"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/middleware"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// UserHandler handles staff account endpoints.
type UserHandler struct {
	store   UserStore
	auditor Auditor
}

// NewUserHandler creates a new UserHandler. auditor may be nil in tests.
func NewUserHandler(store UserStore, auditor Auditor) *UserHandler {
	return &UserHandler{store: store, auditor: auditor}
}

// RegisterRoutes registers staff management endpoints on the given Chi router.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request types ---

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Pin      string `json:"pin"`
}

type updateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Pin      string `json:"pin"`
}

// --- Handlers ---

// List returns all active staff accounts.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		respondInternalError(w)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}

	respond(w, http.StatusOK, "", resp)
}

// Get returns a single staff account.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: get user: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toUserResponse(user))
}

// Create adds a new staff account.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "email, password, full_name, and role are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !auth.ValidRole(req.Role) {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if req.Pin != "" && !isValidPin(req.Pin) {
		respondError(w, http.StatusBadRequest, "PIN must be 4-6 digits")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: create user: hash password: %v", err)
		respondInternalError(w)
		return
	}

	pin := pgtype.Text{}
	if req.Pin != "" {
		pin = pgtype.Text{String: req.Pin, Valid: true}
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
		Pin:            pin,
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		log.Printf("ERROR: create user: %v", err)
		respondInternalError(w)
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		auditRecord(h.auditor, r.Context(), claims.UserID, "user.create", "user", user.ID.String(), user.Email)
	}

	respond(w, http.StatusCreated, "user created", toUserResponse(user))
}

// Update modifies an existing staff account. Passwords are not changed here;
// a user resets their own through the login flow.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.FullName == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "email, full_name, and role are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if !auth.ValidRole(req.Role) {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if req.Pin != "" && !isValidPin(req.Pin) {
		respondError(w, http.StatusBadRequest, "PIN must be 4-6 digits")
		return
	}

	pin := pgtype.Text{}
	if req.Pin != "" {
		pin = pgtype.Text{String: req.Pin, Valid: true}
	}

	user, err := h.store.UpdateUser(r.Context(), database.UpdateUserParams{
		ID:       id,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		Pin:      pin,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		log.Printf("ERROR: update user: %v", err)
		respondInternalError(w)
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		auditRecord(h.auditor, r.Context(), claims.UserID, "user.update", "user", user.ID.String(), user.Email)
	}

	respond(w, http.StatusOK, "user updated", toUserResponse(user))
}

// Delete soft-deletes a staff account by setting is_active=false.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if _, err := h.store.SoftDeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: delete user: %v", err)
		respondInternalError(w)
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		auditRecord(h.auditor, r.Context(), claims.UserID, "user.delete", "user", id.String(), "")
	}

	respond(w, http.StatusOK, "user deleted", nil)
}

// --- Roles ---

type roleResponse struct {
	Name        string            `json:"name"`
	Permissions []auth.Permission `json:"permissions"`
}

// ListRoles returns the static role catalog with each role's permissions.
func ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := auth.Roles()
	resp := make([]roleResponse, len(roles))
	for i, role := range roles {
		resp[i] = roleResponse{Name: role, Permissions: auth.RolePermissions(role)}
	}
	respond(w, http.StatusOK, "", resp)
}

// --- Helpers ---

func isValidPin(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
