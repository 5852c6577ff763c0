package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/services"
)

// StageRequest carries a draft and the session version it was edited
// against. Version 0 skips the check.
type StageRequest struct {
	models.StageDraft
	Version int `json:"version"`
}

func parseStageRequest(c *fiber.Ctx) (StageRequest, error) {
	var req StageRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return req, nil
}

// SaveStageDraft stores stage input without approving it.
func SaveStageDraft(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}
		n, err := stageParam(c)
		if err != nil {
			return err
		}
		req, err := parseStageRequest(c)
		if err != nil {
			return err
		}

		session, err := svc.Stages.SaveDraft(c.Context(), userID, sessionID, n, req.StageDraft, req.Version)
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}

// GenerateStage asks the completion backend for the stage output. A draft
// in the body is applied first.
func GenerateStage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}
		n, err := stageParam(c)
		if err != nil {
			return err
		}
		req, err := parseStageRequest(c)
		if err != nil {
			return err
		}

		ctx, cancel := svc.Operations.Start()
		defer cancel()

		session, err := svc.Stages.Generate(ctx, userID, sessionID, n, req.StageDraft, req.Version)
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}

// ApproveStage marks a stage final and unlocks the next one.
func ApproveStage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}
		n, err := stageParam(c)
		if err != nil {
			return err
		}
		req, err := parseStageRequest(c)
		if err != nil {
			return err
		}

		session, err := svc.Stages.Approve(c.Context(), userID, sessionID, n, req.Version)
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}

// UploadStageAudio accepts a multipart "file" recording and transcribes it.
func UploadStageAudio(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}
		n, err := stageParam(c)
		if err != nil {
			return err
		}

		header, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Multipart field \"file\" is required")
		}
		version := 0
		if v := c.FormValue("version"); v != "" {
			if version, err = strconv.Atoi(v); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid version")
			}
		}

		file, err := header.Open()
		if err != nil {
			return err
		}
		defer file.Close()

		ctx, cancel := svc.Operations.Start()
		defer cancel()

		result, err := svc.Stages.AttachAudio(ctx, userID, sessionID, n, header.Filename, file, header.Size, version)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	}
}

// GetStageAudio streams the stored recording for playback.
func GetStageAudio(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}
		n, err := stageParam(c)
		if err != nil {
			return err
		}

		path, err := svc.Stages.AudioPath(c.Context(), userID, sessionID, n)
		if err != nil {
			return err
		}
		return c.SendFile(path)
	}
}
