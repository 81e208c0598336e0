package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantina-pos/api/internal/auth"
	"github.com/cantina-pos/api/internal/config"
	"github.com/cantina-pos/api/internal/database"
	"github.com/cantina-pos/api/internal/handler"
	mw "github.com/cantina-pos/api/internal/middleware"
	"github.com/cantina-pos/api/internal/service"
	"github.com/cantina-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Read endpoints for the menu, tables, and orders are open to any
// authenticated role; everything else is gated per permission.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"http://localhost:3000", // POS terminal dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Audit trail; also passed into handlers that record privileged actions.
	auditHandler := handler.NewAuditHandler(queries)

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, auditHandler)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share the pool for multi-statement work and the plain
	// queries object for everything else.
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, queries, newOrderStore)

	newPaymentStore := func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	}
	paymentService := service.NewPaymentService(pool, queries, newPaymentStore)

	orderHandler := handler.NewOrderHandler(orderService, queries, hub, auditHandler)
	paymentHandler := handler.NewPaymentHandler(paymentService, queries, hub)
	categoryHandler := handler.NewCategoryHandler(queries)
	menuItemHandler := handler.NewMenuItemHandler(queries)
	tableHandler := handler.NewTableHandler(pool, queries, func(db database.DBTX) handler.TableStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Profile and PIN verification
		authHandler.RegisterProtectedRoutes(r)

		// Role catalog (static, read-only)
		r.Get("/roles", handler.ListRoles)

		// Users
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(auth.PermissionManageUsers))
			userHandler := handler.NewUserHandler(queries, auditHandler)
			r.Route("/users", userHandler.RegisterRoutes)
		})

		// Categories
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePermission(auth.PermissionManageMenu))
				r.Post("/", categoryHandler.Create)
				r.Put("/{id}", categoryHandler.Update)
				r.Delete("/{id}", categoryHandler.Delete)
			})
		})

		// Menu items
		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", menuItemHandler.List)
			r.Get("/{id}", menuItemHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePermission(auth.PermissionManageMenu))
				r.Post("/", menuItemHandler.Create)
				r.Put("/{id}", menuItemHandler.Update)
				r.Patch("/{id}/availability", menuItemHandler.SetAvailability)
				r.Delete("/{id}", menuItemHandler.Delete)
			})
		})

		// Tables
		r.Route("/tables", func(r chi.Router) {
			r.Get("/", tableHandler.List)
			r.Get("/{id}", tableHandler.Get)
			r.With(mw.RequirePermission(auth.PermissionTakeOrders)).
				Patch("/{id}/status", tableHandler.SetStatus)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePermission(auth.PermissionProcessPayments))
				paymentHandler.RegisterAccountRoute(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePermission(auth.PermissionManageTables))
				r.Post("/", tableHandler.Create)
				r.Post("/init", tableHandler.Init)
				r.Put("/{id}", tableHandler.Update)
				r.Delete("/{id}", tableHandler.Delete)
			})
		})

		// Orders
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.With(mw.RequirePermission(auth.PermissionTakeOrders)).
				Post("/", orderHandler.Create)
			r.With(mw.RequirePermission(auth.PermissionEditOrders)).
				Put("/{id}", orderHandler.Edit)
			r.With(mw.RequirePermission(auth.PermissionEditOrders)).
				Patch("/{id}/status", orderHandler.UpdateStatus)
			r.With(mw.RequirePermission(auth.PermissionVoidOrders)).
				Delete("/{id}", orderHandler.Cancel)
			r.With(mw.RequirePermission(auth.PermissionVoidOrders)).
				Post("/{id}/void", orderHandler.Void)
		})

		// Kitchen board
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(auth.PermissionUpdateKitchen))
			kitchenHandler := handler.NewKitchenHandler(orderService, queries, hub)
			r.Route("/kitchen", kitchenHandler.RegisterRoutes)
		})

		// Payments
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(auth.PermissionProcessPayments))
			r.Route("/payments", paymentHandler.RegisterRoutes)
		})

		// Reservations
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(auth.PermissionManageReservations))
			reservationHandler := handler.NewReservationHandler(queries)
			r.Route("/reservations", reservationHandler.RegisterRoutes)
		})

		// Settings
		settingsHandler := handler.NewSettingsHandler(queries, auditHandler)
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePermission(auth.PermissionManageSettings))
				r.Put("/general", settingsHandler.UpdateGeneral)
				r.Put("/tax", settingsHandler.UpdateTax)
				r.Put("/tips", settingsHandler.UpdateTips)
				r.Put("/notifications", settingsHandler.UpdateNotifications)
			})
		})

		// Reports
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(auth.PermissionViewReports))
			reportsHandler := handler.NewReportsHandler(queries)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})

		// Audit log
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(auth.PermissionViewAudit))
			r.Route("/audit", auditHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
