package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
)

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	var fe *fiber.Error
	var ve *models.ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		if ve.TooLarge {
			return fiber.StatusRequestEntityTooLarge
		}
		return fiber.StatusBadRequest

	case errors.Is(err, models.ErrNotConfigured),
		errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, models.ErrCompletionFailed),
		errors.Is(err, models.ErrTranscriptionFailed),
		errors.Is(err, models.ErrAllSegmentsFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrAudioNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrStageLocked),
		errors.Is(err, models.ErrVersionConflict),
		errors.Is(err, auth.ErrEmailAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrNothingToApprove),
		errors.Is(err, models.ErrInvalidStage),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooWeak):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrUserInactive):
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

// NewErrorHandler renders every error as {"error", "code"}. Messages of
// unexpected errors are logged, not returned.
func NewErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			logger.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("Unhandled request error")
			msg = "internal server error"
		}

		return c.Status(code).JSON(fiber.Map{
			"error": msg,
			"code":  code,
		})
	}
}
