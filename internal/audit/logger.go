package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
)

// EventType represents the type of audit event
type EventType string

const (
	EventLogin         EventType = "user.login"
	EventLoginFailed   EventType = "user.login_failed"
	EventSignup        EventType = "user.signup"
	EventSessionCreate EventType = "session.create"
	EventSessionDelete EventType = "session.delete"
	EventSessionExport EventType = "session.export"
	EventStageDraft    EventType = "stage.draft"
	EventStageGenerate EventType = "stage.generate"
	EventStageApprove  EventType = "stage.approve"
	EventAudioUpload   EventType = "stage.audio_upload"
)

// Result values stored in the status column.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Event represents an audit event
type Event struct {
	ID         uuid.UUID  `json:"id"`
	EventType  EventType  `json:"event_type"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Resource   string     `json:"resource,omitempty"`
	ResourceID *uuid.UUID `json:"resource_id,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Result     string     `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Service writes audit events to the audit log table.
type Service struct {
	repo   repository.AuditLogRepository
	logger *logrus.Logger
}

// NewService creates a new audit service
func NewService(repo repository.AuditLogRepository, logger *logrus.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log records an audit event
func (s *Service) Log(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Result == "" {
		event.Result = ResultSuccess
	}

	return s.repo.Log(ctx, &models.AuditLog{
		ID:           event.ID,
		UserID:       event.UserID,
		Action:       string(event.EventType),
		ResourceType: event.Resource,
		ResourceID:   event.ResourceID,
		IPAddress:    event.IPAddress,
		Detail:       event.Detail,
		Status:       event.Result,
		CreatedAt:    event.CreatedAt,
	})
}

// Record logs the event and reports storage failures to the application
// log instead of the caller. Requests never fail because of the audit trail.
func (s *Service) Record(ctx context.Context, event *Event) {
	if err := s.Log(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.EventType).Warn("Failed to write audit log")
	}
}

// GetUserEvents retrieves audit events for a specific user
func (s *Service) GetUserEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*Event, error) {
	logs, err := s.repo.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return toEvents(logs), nil
}

// GetSystemEvents retrieves system-wide audit events
func (s *Service) GetSystemEvents(ctx context.Context, limit int) ([]*Event, error) {
	logs, err := s.repo.GetRecentLogs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toEvents(logs), nil
}

func toEvents(logs []*models.AuditLog) []*Event {
	events := make([]*Event, len(logs))
	for i, log := range logs {
		events[i] = &Event{
			ID:         log.ID,
			EventType:  EventType(log.Action),
			UserID:     log.UserID,
			IPAddress:  log.IPAddress,
			Resource:   log.ResourceType,
			ResourceID: log.ResourceID,
			Detail:     log.Detail,
			Result:     log.Status,
			CreatedAt:  log.CreatedAt,
		}
	}
	return events
}

// NewEvent is a helper for building an event about a resource.
func NewEvent(eventType EventType, userID *uuid.UUID, ipAddress string) *Event {
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		UserID:    userID,
		IPAddress: ipAddress,
		CreatedAt: time.Now().UTC(),
	}
}
