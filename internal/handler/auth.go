package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cantina-pos/api/internal/auth"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/enum"
	"github.com/cantina-pos/api/internal/middleware"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
	auditor   Auditor
}

// NewAuthHandler creates a new AuthHandler. auditor may be nil in tests.
func NewAuthHandler(store AuthStore, jwtSecret string, auditor Auditor) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret, auditor: auditor}
}

// RegisterRoutes registers the public auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

// RegisterProtectedRoutes registers auth endpoints that require a valid token.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
	r.Post("/auth/verify-pin", h.VerifyPin)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyPinRequest struct {
	UserID string `json:"user_id"`
	Pin    string `json:"pin"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID          uuid.UUID         `json:"id"`
	FullName    string            `json:"full_name"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	Permissions []auth.Permission `json:"permissions"`
	IsActive    bool              `json:"is_active"`
}

func toUserResponse(u database.User) userResponse {
	return userResponse{
		ID:          u.ID,
		FullName:    u.FullName,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: auth.RolePermissions(u.Role),
		IsActive:    u.IsActive,
	}
}

// --- Handlers ---

// Login handles email + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: get user by email: %v", err)
		respondInternalError(w)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithTokens(w, user)
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	// Parse refresh token -- it uses RegisteredClaims with Subject = user ID.
	token, err := jwt.ParseWithClaims(req.RefreshToken, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "user not found")
			return
		}
		log.Printf("ERROR: get user for refresh: %v", err)
		respondInternalError(w)
		return
	}

	h.respondWithTokens(w, user)
}

// Me returns the authenticated user's profile and effective permissions.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: get user for profile: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", toUserResponse(user))
}

// VerifyPin confirms a manager or owner PIN for in-person overrides such as
// voiding an order at the terminal. PINs are stored as plaintext: they are
// low-entropy 4-6 digit codes that never grant access on their own, only
// confirm that a supervisor is physically present.
func (h *AuthHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	var req verifyPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" || req.Pin == "" {
		respondError(w, http.StatusBadRequest, "user_id and pin are required")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: get user for pin verify: %v", err)
		respondInternalError(w)
		return
	}

	if user.Role != enum.UserRoleManager && user.Role != enum.UserRoleOwner {
		respondError(w, http.StatusForbidden, "user cannot authorize overrides")
		return
	}

	if !user.Pin.Valid || user.Pin.String != req.Pin {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	auditRecord(h.auditor, r.Context(), user.ID, "pin.verify", "user", user.ID.String(), "")

	respond(w, http.StatusOK, "pin verified", map[string]interface{}{
		"user_id":   user.ID,
		"full_name": user.FullName,
		"role":      user.Role,
	})
}

// --- Helpers ---

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, user database.User) {
	accessToken, err := auth.GenerateToken(h.jwtSecret, user.ID, user.FullName, user.Role)
	if err != nil {
		log.Printf("ERROR: generate access token: %v", err)
		respondInternalError(w)
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, user.ID)
	if err != nil {
		log.Printf("ERROR: generate refresh token: %v", err)
		respondInternalError(w)
		return
	}

	respond(w, http.StatusOK, "", tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         toUserResponse(user),
	})
}
