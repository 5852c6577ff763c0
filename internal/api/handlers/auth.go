package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/api/middleware"
	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest represents a signup request
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	User *UserResponse `json:"user"`
	*auth.TokenPair
}

func toUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// Signup registers a facilitator account.
func Signup(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
		}

		user, err := authService.SignUp(c.Context(), req.Email, req.Password, req.FullName)
		if err != nil {
			return err
		}
		c.Locals(middleware.AuditUserKey, user.ID)

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// Login handles user login
func Login(authService *auth.Service, logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
		}

		user, pair, err := authService.Login(c.Context(), req.Email, req.Password)
		if err != nil {
			logger.WithError(err).WithField("ip", c.IP()).Info("Login rejected")
			return err
		}
		c.Locals(middleware.AuditUserKey, user.ID)

		return c.JSON(LoginResponse{User: toUserResponse(user), TokenPair: pair})
	}
}

// RefreshToken exchanges a refresh token for a new token pair.
func RefreshToken(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token is required")
		}

		pair, err := authService.Refresh(c.Context(), req.RefreshToken)
		if err != nil {
			return err
		}
		return c.JSON(pair)
	}
}

// GetCurrentUser returns the authenticated facilitator.
func GetCurrentUser(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		user, err := authService.Me(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(toUserResponse(user))
	}
}
