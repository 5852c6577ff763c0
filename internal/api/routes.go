package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/api/handlers"
	"github.com/Messijah/PedagogiskDialog/internal/api/middleware"
	"github.com/Messijah/PedagogiskDialog/internal/audit"
	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/services"
)

// Dependencies are the components the routes are served from.
type Dependencies struct {
	Services *services.Services
	Auth     *auth.Service
	Audit    *audit.Service
	DB       handlers.Pinger
	Logger   *logrus.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	svc := deps.Services
	record := func(event audit.EventType) fiber.Handler {
		return middleware.Audit(deps.Audit, event)
	}

	api := app.Group("/api/v1")

	// Public routes
	api.Get("/health", handlers.Health(svc, deps.DB))

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.AuthRateLimit(), record(audit.EventSignup), handlers.Signup(deps.Auth))
	authGroup.Post("/login", middleware.AuthRateLimit(), record(audit.EventLogin), handlers.Login(deps.Auth, deps.Logger))
	authGroup.Post("/refresh", middleware.AuthRateLimit(), handlers.RefreshToken(deps.Auth))

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(deps.Auth))
	protected.Get("/auth/me", handlers.GetCurrentUser(deps.Auth))
	protected.Get("/metrics", handlers.GetMetrics(svc))
	protected.Get("/audit", middleware.RequireRole(models.RoleAdmin), handlers.GetAuditLog(deps.Audit))

	sessions := protected.Group("/sessions")
	sessions.Post("/", record(audit.EventSessionCreate), handlers.CreateSession(svc))
	sessions.Get("/", handlers.GetSessions(svc))
	sessions.Get("/:id", handlers.GetSession(svc))
	sessions.Delete("/:id", record(audit.EventSessionDelete), handlers.DeleteSession(svc))
	sessions.Get("/:id/status", handlers.GetSessionStatus(svc))
	sessions.Get("/:id/export", record(audit.EventSessionExport), handlers.ExportSession(svc))

	stages := sessions.Group("/:id/stages/:stage")
	stages.Put("/", record(audit.EventStageDraft), handlers.SaveStageDraft(svc))
	stages.Post("/generate", middleware.WorkRateLimit(), record(audit.EventStageGenerate), handlers.GenerateStage(svc))
	stages.Post("/approve", record(audit.EventStageApprove), handlers.ApproveStage(svc))
	stages.Post("/audio", middleware.WorkRateLimit(), record(audit.EventAudioUpload), handlers.UploadStageAudio(svc))
	stages.Get("/audio", handlers.GetStageAudio(svc))

	// WebSocket progress; the token travels as ?token= on the upgrade request.
	app.Get("/ws/sessions/:id/progress",
		middleware.AuthRequired(deps.Auth),
		handlers.AuthorizeProgress(svc),
		handlers.StreamProgress(svc, deps.Logger),
	)
}
