package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

type memoryRepo struct {
	entries []*models.AuditLog
	err     error
}

func (m *memoryRepo) Log(_ context.Context, entry *models.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	for _, e := range m.entries {
		if e.UserID != nil && *e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetRecentLogs(_ context.Context, limit int) ([]*models.AuditLog, error) {
	if len(m.entries) < limit {
		limit = len(m.entries)
	}
	return m.entries[:limit], nil
}

func TestLogFillsDefaults(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, logrus.New())
	user := uuid.New()
	session := uuid.New()

	ev := NewEvent(EventStageApprove, &user, "10.0.0.1")
	ev.Resource = "session"
	ev.ResourceID = &session
	ev.Detail = "stage 2"
	require.NoError(t, svc.Log(context.Background(), ev))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, "stage.approve", entry.Action)
	assert.Equal(t, ResultSuccess, entry.Status)
	assert.Equal(t, session, *entry.ResourceID)

	events, err := svc.GetUserEvents(context.Background(), user, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventStageApprove, events[0].EventType)
	assert.Equal(t, "stage 2", events[0].Detail)

	events, err = svc.GetUserEvents(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordSwallowsStorageErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := NewService(&memoryRepo{err: errors.New("disk full")}, logger)

	svc.Record(context.Background(), &Event{EventType: EventLoginFailed, Result: ResultFailure})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, EventLoginFailed, hook.LastEntry().Data["event"])
}
