package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
)

var stageFields = []string{
	"input_text", "notes", "audio_path", "transcript", "ai_output", "approved", "completed_at",
}

var headerColumns = []string{
	"id", "owner_id", "name", "facilitator_name", "participants",
	"created_at", "updated_at", "current_stage", "completed", "version",
}

// sessionColumns is the full column list in scan order.
var sessionColumns = func() []string {
	cols := append([]string{}, headerColumns...)
	for n := 1; n <= models.StageCount; n++ {
		for _, f := range stageFields {
			cols = append(cols, fmt.Sprintf("stage%d_%s", n, f))
		}
	}
	return cols
}()

// immutableColumns are set once on insert.
var immutableColumns = map[string]bool{
	"id": true, "owner_id": true, "name": true, "facilitator_name": true,
	"participants": true, "created_at": true,
}

const summaryColumns = `id, name, facilitator_name, current_stage, completed, created_at, updated_at`

// SessionRepository implements repository.SessionRepository on any of the
// supported SQL drivers. Queries are written with ? and rebound per driver.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sessionColumns)), ", ")
	query := fmt.Sprintf(`INSERT INTO sessions (%s) VALUES (%s)`,
		strings.Join(sessionColumns, ", "), placeholders)

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), rowValues(s)...)
	return err
}

// Get retrieves a session owned by ownerID.
func (r *SessionRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = ? AND owner_id = ?`,
		strings.Join(sessionColumns, ", "))
	return r.getOne(ctx, query, id, ownerID)
}

// GetByID retrieves a session regardless of owner.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = ?`, strings.Join(sessionColumns, ", "))
	return r.getOne(ctx, query, id)
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Session, error) {
	var s models.Session
	row := r.db.QueryRowxContext(ctx, r.db.Rebind(query), args...)
	if err := row.Scan(scanTargets(&s)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}
	for i := range s.Stages {
		s.Stages[i].Number = i + 1
	}
	return &s, nil
}

// List retrieves the owner's sessions, newest first.
func (r *SessionRepository) List(ctx context.Context, ownerID uuid.UUID) ([]models.SessionSummary, error) {
	sessions := []models.SessionSummary{}
	query := `
		SELECT ` + summaryColumns + `
		FROM sessions
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`

	err := r.db.SelectContext(ctx, &sessions, r.db.Rebind(query), ownerID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListAll retrieves every session, newest first.
func (r *SessionRepository) ListAll(ctx context.Context) ([]models.SessionSummary, error) {
	sessions := []models.SessionSummary{}
	query := `SELECT ` + summaryColumns + ` FROM sessions ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Update writes the full row if nobody else has written since it was loaded.
func (r *SessionRepository) Update(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	updatedAt := time.Now().UTC()
	row := *s
	row.UpdatedAt = updatedAt
	values := rowValues(&row)

	sets := make([]string, 0, len(sessionColumns))
	args := make([]interface{}, 0, len(sessionColumns)+2)
	for i, c := range sessionColumns {
		switch {
		case immutableColumns[c]:
			continue
		case c == "version":
			sets = append(sets, "version = version + 1")
		default:
			sets = append(sets, c+" = ?")
			args = append(args, values[i])
		}
	}
	args = append(args, s.ID, s.Version)

	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ? AND version = ?`, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT COUNT(*) FROM sessions WHERE id = ?`), s.ID)
		if err != nil {
			return err
		}
		if exists == 0 {
			return models.ErrSessionNotFound
		}
		return models.ErrVersionConflict
	}

	s.Version++
	s.UpdatedAt = updatedAt
	return nil
}

// Delete removes a session owned by ownerID. Referenced audio files are kept.
func (r *SessionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE id = ? AND owner_id = ?`), id, ownerID)
	return checkDeleted(res, err)
}

// DeleteByID removes a session regardless of owner.
func (r *SessionRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return checkDeleted(res, err)
}

// AudioPaths lists all audio files referenced by stored sessions.
func (r *SessionRepository) AudioPaths(ctx context.Context) ([]string, error) {
	parts := make([]string, 0, models.StageCount)
	for n := 1; n <= models.StageCount; n++ {
		parts = append(parts, fmt.Sprintf(
			`SELECT stage%d_audio_path AS path FROM sessions WHERE stage%d_audio_path <> ''`, n, n))
	}

	var paths []string
	if err := r.db.SelectContext(ctx, &paths, strings.Join(parts, " UNION ")); err != nil {
		return nil, err
	}
	return paths, nil
}

func checkDeleted(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// rowValues returns the column values of s in sessionColumns order.
func rowValues(s *models.Session) []interface{} {
	values := []interface{}{
		s.ID, s.OwnerID, s.Name, s.FacilitatorName, s.Participants,
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(), s.CurrentStage, s.Completed, s.Version,
	}
	for i := range s.Stages {
		st := &s.Stages[i]
		var completedAt interface{}
		if st.CompletedAt != nil {
			completedAt = st.CompletedAt.UTC()
		}
		values = append(values,
			st.InputText, st.Notes, st.AudioPath, st.Transcript, st.AIOutput, st.Approved, completedAt)
	}
	return values
}

// scanTargets returns pointers into s in sessionColumns order.
func scanTargets(s *models.Session) []interface{} {
	targets := []interface{}{
		&s.ID, &s.OwnerID, &s.Name, &s.FacilitatorName, &s.Participants,
		&s.CreatedAt, &s.UpdatedAt, &s.CurrentStage, &s.Completed, &s.Version,
	}
	for i := range s.Stages {
		st := &s.Stages[i]
		targets = append(targets,
			&st.InputText, &st.Notes, &st.AudioPath, &st.Transcript, &st.AIOutput, &st.Approved, &st.CompletedAt)
	}
	return targets
}
