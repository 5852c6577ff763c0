package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Messijah/PedagogiskDialog/internal/audit"
	"github.com/Messijah/PedagogiskDialog/internal/services"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping() error
}

// Health reports whether the database and both AI backends are usable.
// A missing backend degrades the service but does not fail the check.
func Health(svc *services.Services, db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "healthy"
		dbStatus := "ok"
		if db != nil {
			if err := db.Ping(); err != nil {
				status, dbStatus = "unhealthy", err.Error()
			}
		}
		completion := svc.Gateway.CompletionConfigured()
		transcription := svc.Gateway.TranscriptionConfigured()
		if status == "healthy" && (!completion || !transcription) {
			status = "degraded"
		}

		code := fiber.StatusOK
		if status == "unhealthy" {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":        status,
			"service":       "pedagogisk-dialog",
			"database":      dbStatus,
			"completion":    completion,
			"transcription": transcription,
		})
	}
}

// GetMetrics returns request, retry and token counters of the AI gateway.
func GetMetrics(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Gateway.GetMetrics())
	}
}

// GetAuditLog lists recent audit events (admin only).
func GetAuditLog(auditService *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "100"))
		if err != nil || limit <= 0 || limit > 1000 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 1000")
		}
		events, err := auditService.GetSystemEvents(c.Context(), limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"events": events})
	}
}
