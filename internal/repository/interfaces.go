package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned when a user with the same email exists.
var ErrEmailTaken = errors.New("email already exists")

// SessionRepository defines session storage operations. Every write checks
// Session.Validate first and Update is conditional on the loaded version.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	// Get returns the session only if ownerID owns it.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// List returns the owner's sessions, newest first.
	List(ctx context.Context, ownerID uuid.UUID) ([]models.SessionSummary, error)
	ListAll(ctx context.Context) ([]models.SessionSummary, error)
	// Update writes the whole row if its stored version equals
	// session.Version, then increments session.Version.
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// AudioPaths lists every audio file referenced by any session.
	AudioPaths(ctx context.Context) ([]string, error)
}

// UserRepository defines facilitator account storage operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// AuditLogRepository defines audit trail storage operations
type AuditLogRepository interface {
	Log(ctx context.Context, entry *models.AuditLog) error
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)
	GetRecentLogs(ctx context.Context, limit int) ([]*models.AuditLog, error)
}
