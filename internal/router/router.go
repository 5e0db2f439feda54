package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"inspecta-backend/internal/handlers"
	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	authLimiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	catalogHandler *handlers.CatalogHandler,
	taskHandler *handlers.TaskHandler,
	checkHandler *handlers.CheckHandler,
	caseHandler *handlers.NonComplianceHandler,
	calendarHandler *handlers.CalendarHandler,
	chatHandler *handlers.ChatHandler,
	instructionHandler *handlers.InstructionHandler,
	reportHandler *handlers.ReportHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	managers := middleware.RequireRole(models.RoleAdmin, models.RoleSupervisor)
	admins := middleware.RequireRole(models.RoleAdmin)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/domains", authHandler.Domains)

		// ──── Auth ────
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter.Middleware).Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(sessionAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
				r.Put("/password", authHandler.ChangePassword)
			})
		})

		// ──── WebSocket (authenticates its own query credentials) ────
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth.Middleware)

			// ──── Users ────
			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Group(func(r chi.Router) {
					r.Use(admins)
					r.Post("/", userHandler.Create)
					r.Put("/{id}", userHandler.Update)
					r.Delete("/{id}", userHandler.Deactivate)
				})
			})

			// ──── Catalog ────
			r.Route("/object-types", func(r chi.Router) {
				r.Get("/", catalogHandler.ListObjectTypes)
				r.Get("/{id}", catalogHandler.GetObjectType)
				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/", catalogHandler.CreateObjectType)
					r.Put("/{id}", catalogHandler.UpdateObjectType)
					r.Delete("/{id}", catalogHandler.DeleteObjectType)
				})
			})

			r.Route("/objects", func(r chi.Router) {
				r.Get("/", catalogHandler.ListObjects)
				r.Get("/{id}", catalogHandler.GetObject)
				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/", catalogHandler.CreateObject)
					r.Put("/{id}", catalogHandler.UpdateObject)
					r.Delete("/{id}", catalogHandler.DeleteObject)
				})
			})

			r.Route("/parameters", func(r chi.Router) {
				r.Get("/", catalogHandler.ListParameters)
				r.Get("/{id}", catalogHandler.GetParameter)
				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/", catalogHandler.CreateParameter)
					r.Put("/{id}", catalogHandler.UpdateParameter)
					r.Delete("/{id}", catalogHandler.DeleteParameter)
				})
			})

			// ──── Tasks ────
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Get("/{id}", taskHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/", taskHandler.Create)
					r.Put("/{id}", taskHandler.Update)
					r.Delete("/{id}", taskHandler.Cancel)
				})
			})

			// ──── Checks ────
			r.Route("/checks", func(r chi.Router) {
				r.Get("/", checkHandler.List)
				r.Get("/{id}", checkHandler.Get)
				r.Post("/{id}/start", checkHandler.Start)
				r.Post("/{id}/complete", checkHandler.Complete)
				r.Post("/{id}/non-compliances/sync", checkHandler.SyncNonCompliances)
			})

			// ──── Non-compliances ────
			r.Route("/non-compliances", func(r chi.Router) {
				r.Get("/", caseHandler.List)
				r.Get("/{id}", caseHandler.Get)
				r.Post("/", caseHandler.Create)
				r.Put("/{id}", caseHandler.Update)
				r.With(managers).Delete("/{id}", caseHandler.Delete)
			})

			r.Get("/calendar", calendarHandler.Get)

			// ──── Chat ────
			r.Route("/chat/rooms/{room}/messages", func(r chi.Router) {
				r.Get("/", chatHandler.List)
				r.Post("/", chatHandler.Post)
			})

			// ──── Instructions ────
			r.Route("/instruction-categories", func(r chi.Router) {
				r.Get("/", instructionHandler.ListCategories)
				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/", instructionHandler.CreateCategory)
					r.Put("/{id}", instructionHandler.RenameCategory)
					r.Delete("/{id}", instructionHandler.DeleteCategory)
				})
			})

			r.Route("/instructions", func(r chi.Router) {
				r.Get("/", instructionHandler.List)
				r.Get("/{id}", instructionHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(managers)
					r.Post("/", instructionHandler.Create)
					r.Put("/{id}", instructionHandler.Update)
					r.Delete("/{id}", instructionHandler.Delete)
					r.Post("/{id}/document", instructionHandler.UploadDocument)
				})
			})

			// ──── Reports ────
			r.Route("/reports", func(r chi.Router) {
				r.Use(managers)
				r.Get("/summary", reportHandler.Summary)
				r.Post("/export", reportHandler.RequestExport)
				r.Get("/exports/{job_id}", reportHandler.DownloadExport)
			})

			// ──── Jobs ────
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/{id}", jobHandler.GetStatus)
				r.Delete("/{id}", jobHandler.Cancel)
			})
		})
	})

	return r
}

// AuthRateLimit builds the per-IP limiter for the login route.
func AuthRateLimit(perMinute int) *middleware.RateLimiter {
	return middleware.NewRateLimiter(perMinute, time.Minute)
}
