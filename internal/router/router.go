package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-pos/api/internal/config"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/handler"
	"github.com/mesa-pos/api/internal/metrics"
	mw "github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/notify"
	"github.com/mesa-pos/api/internal/service"
	"github.com/mesa-pos/api/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, tenant scoping, and role-based middleware as needed.
// gatherer backs /metrics and should be the registry m was registered with.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, notifier service.Notifier, m *metrics.Metrics, gatherer prometheus.Gatherer) chi.Router {
	queries := database.New(pool)

	tables := service.NewTableService(pool, queries, func(db database.DBTX) service.TableStore {
		return database.New(db)
	}, notifier, m)
	orders := service.NewOrderService(queries, tables, notifier, m)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	handler.NewAuthHandler(queries, cfg.JWTSecret).RegisterRoutes(r)
	handler.NewWebhookHandler(orders, cfg.WebhookSecret).RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	snapshot := notify.Snapshot(tables)
	r.Get("/ws/tenants/{tid}/tables", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, snapshot, w, r)
	})

	tableHandler := handler.NewTableHandler(tables)
	orderHandler := handler.NewOrderHandler(orders, queries)
	menuHandler := handler.NewMenuHandler(queries)
	staffHandler := handler.NewStaffHandler(queries)
	reportsHandler := handler.NewReportsHandler(queries)

	// Protected, tenant-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTenant)

			tableHandler.RegisterRoutes(r)

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.StaffRoleOwner))
					orderHandler.RegisterOwnerRoutes(r)
				})
			})

			r.Route("/menu-items", func(r chi.Router) {
				menuHandler.RegisterRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.StaffRoleOwner))
					menuHandler.RegisterOwnerRoutes(r)
				})
			})

			r.Route("/staff", func(r chi.Router) {
				staffHandler.RegisterRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.StaffRoleOwner))
					staffHandler.RegisterOwnerRoutes(r)
				})
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.StaffRoleOwner))
				reportsHandler.RegisterRoutes(r)
			})
		})
	})

	logrus.Debug("router initialized")
	return r
}
