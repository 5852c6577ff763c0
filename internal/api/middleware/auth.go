package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

const userContextKey = "user_context"

// Authenticator validates an access token.
type Authenticator interface {
	Authenticate(token string) (*models.UserContext, error)
}

// AuthRequired rejects requests without a valid access token. The token is
// read from the Authorization header, then the access_token cookie, then
// the token query parameter (browsers cannot set headers on WebSockets).
func AuthRequired(authenticator Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.ExtractTokenFromBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies("access_token")
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}

		user, err := authenticator.Authenticate(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(userContextKey, user)
		c.Locals("user_id", user.UserID.String())
		return c.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUserContext(c)
		if user == nil || user.Role != role {
			return fiber.NewError(fiber.StatusForbidden, "Insufficient permissions")
		}
		return c.Next()
	}
}

// GetUserContext retrieves the user context from the fiber context
func GetUserContext(c *fiber.Ctx) *models.UserContext {
	if ctx := c.Locals(userContextKey); ctx != nil {
		if userContext, ok := ctx.(*models.UserContext); ok {
			return userContext
		}
	}
	return nil
}

// GetUserID retrieves the user ID from the fiber context
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	if user := GetUserContext(c); user != nil {
		return user.UserID, nil
	}
	return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
}
