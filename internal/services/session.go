package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
	"github.com/Messijah/PedagogiskDialog/internal/workflow"
)

// CreateSessionRequest holds the values entered when a dialogue starts.
type CreateSessionRequest struct {
	Name            string `json:"name"`
	FacilitatorName string `json:"facilitator_name"`
	Participants    string `json:"participants"`
}

// SessionService manages the lifecycle of dialogue sessions.
type SessionService struct {
	sessions repository.SessionRepository
	logger   *logrus.Logger
}

// NewSessionService creates a session service.
func NewSessionService(sessions repository.SessionRepository, logger *logrus.Logger) *SessionService {
	return &SessionService{sessions: sessions, logger: logger}
}

// Create starts a new session at stage 1.
func (s *SessionService) Create(ctx context.Context, ownerID uuid.UUID, req CreateSessionRequest) (*models.Session, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "session name is required")
	}
	facilitator := strings.TrimSpace(req.FacilitatorName)
	if facilitator == "" {
		return nil, models.NewValidationError("facilitator_name", "facilitator name is required")
	}

	session := models.NewSession(ownerID, name, facilitator, strings.TrimSpace(req.Participants))
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"owner_id":   ownerID,
	}).Info("Session created")
	return session, nil
}

// Get loads one of the owner's sessions.
func (s *SessionService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Session, error) {
	return s.sessions.Get(ctx, ownerID, id)
}

// List returns the owner's sessions, newest first.
func (s *SessionService) List(ctx context.Context, ownerID uuid.UUID) ([]models.SessionSummary, error) {
	return s.sessions.List(ctx, ownerID)
}

// Delete removes a session. Its recordings stay on disk.
func (s *SessionService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.sessions.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.WithField("session_id", id).Info("Session deleted")
	return nil
}

// Status returns progress and per-stage accessibility.
func (s *SessionService) Status(ctx context.Context, ownerID, id uuid.UUID) (*models.SessionStatus, error) {
	session, err := s.sessions.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	status := workflow.Status(session)
	return &status, nil
}

// Export renders the session as a markdown document and suggests a file name.
func (s *SessionService) Export(ctx context.Context, ownerID, id uuid.UUID) (doc, filename string, err error) {
	session, err := s.sessions.Get(ctx, ownerID, id)
	if err != nil {
		return "", "", err
	}
	now := time.Now()
	return RenderExport(session, now), ExportFileName(session, now), nil
}
