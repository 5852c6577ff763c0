package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserInactive is returned when a user is inactive
	ErrUserInactive = errors.New("user account is inactive")
	// ErrEmailAlreadyExists is returned when email is already registered
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidEmail is returned when the email address cannot be parsed
	ErrInvalidEmail = errors.New("invalid email address")
)

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Service handles facilitator sign-up, login and token refresh. Tokens are
// stateless; nothing but the user row is stored.
type Service struct {
	users  repository.UserRepository
	jwt    *JWTService
	logger *logrus.Logger
}

// NewService creates a new auth service
func NewService(users repository.UserRepository, cfg config.AuthConfig, logger *logrus.Logger) *Service {
	return &Service{
		users:  users,
		jwt:    NewJWTService(cfg.JWTSecret, cfg.Issuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		logger: logger,
	}
}

// JWT exposes the token service for the auth middleware.
func (s *Service) JWT() *JWTService { return s.jwt }

// SignUp registers a new facilitator.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*models.User, error) {
	user, err := NewUser(email, password, fullName, models.RoleFacilitator)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User signed up")
	return user, nil
}

// NewUser validates the input and builds an active user with a hashed
// password. It is shared by sign-up and the admin CLI.
func NewUser(email, password, fullName, role string) (*models.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleFacilitator
	}

	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Email:        addr.Address,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Login authenticates a user and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The user is reloaded so
// deactivated accounts cannot refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.Me(ctx, uuid.MustParse(claims.UserID))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return s.issue(user)
}

// Me returns the user behind a validated token.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Authenticate validates an access token and returns the caller.
func (s *Service) Authenticate(token string) (*models.UserContext, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &models.UserContext{
		UserID: uuid.MustParse(claims.UserID),
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

func (s *Service) issue(user *models.User) (*TokenPair, error) {
	access, refresh, err := s.jwt.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwt.AccessTTL().Seconds()),
	}, nil
}
