package middleware

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Messijah/PedagogiskDialog/internal/audit"
)

// AuditUserKey lets public handlers (login, signup) name the user they
// resolved so the audit entry carries it.
const AuditUserKey = "audit_user_id"

// Recorder persists audit events without failing the request.
type Recorder interface {
	Record(ctx context.Context, event *audit.Event)
}

// Audit records one event of the given type after the route's handler ran.
func Audit(recorder Recorder, eventType audit.EventType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		event := audit.NewEvent(eventType, auditUser(c), c.IP())
		if raw := c.Params("id"); raw != "" {
			if id, perr := uuid.Parse(raw); perr == nil {
				event.Resource = "session"
				event.ResourceID = &id
			}
		}
		if stage := c.Params("stage"); stage != "" {
			event.Detail = "stage " + stage
		}
		if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			event.Result = audit.ResultFailure
			msg := fmt.Sprintf("HTTP %d", c.Response().StatusCode())
			if err != nil {
				msg = err.Error()
			}
			event.Detail = joinDetail(event.Detail, msg)
		}

		recorder.Record(c.Context(), event)
		return err
	}
}

func auditUser(c *fiber.Ctx) *uuid.UUID {
	if user := GetUserContext(c); user != nil {
		id := user.UserID
		return &id
	}
	if id, ok := c.Locals(AuditUserKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + ": " + b
}
