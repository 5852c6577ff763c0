package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Messijah/PedagogiskDialog/internal/api/middleware"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/services"
)

// caller resolves the authenticated user and the :id session parameter.
func caller(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid session ID")
	}
	return userID, sessionID, nil
}

// stageParam parses :stage; anything outside 1..4 is ErrInvalidStage.
func stageParam(c *fiber.Ctx) (int, error) {
	n, err := strconv.Atoi(c.Params("stage"))
	if err != nil || !models.ValidStage(n) {
		return 0, models.ErrInvalidStage
	}
	return n, nil
}

// CreateSession starts a new dialogue.
func CreateSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		var req services.CreateSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		session, err := svc.Sessions.Create(c.Context(), userID, req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	}
}

// GetSessions lists the caller's sessions, newest first.
func GetSessions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		sessions, err := svc.Sessions.List(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"sessions": sessions,
		})
	}
}

// GetSession returns a specific session
func GetSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}

		session, err := svc.Sessions.Get(c.Context(), userID, sessionID)
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}

// DeleteSession deletes a session. Its recordings stay on disk.
func DeleteSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}

		if err := svc.Sessions.Delete(c.Context(), userID, sessionID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetSessionStatus returns progress and per-stage accessibility.
func GetSessionStatus(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}

		status, err := svc.Sessions.Status(c.Context(), userID, sessionID)
		if err != nil {
			return err
		}
		return c.JSON(status)
	}
}

// ExportSession downloads the session as a markdown action plan.
func ExportSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}

		doc, filename, err := svc.Sessions.Export(c.Context(), userID, sessionID)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
		return c.SendString(doc)
	}
}
