package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/audio"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/prompts"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
	"github.com/Messijah/PedagogiskDialog/internal/workflow"
)

// StageService runs the per-stage operations: drafts, AI generation,
// approval and recordings. Every write is conditional on the session
// version the caller last saw; expectedVersion 0 means "the version just
// loaded".
type StageService struct {
	sessions   repository.SessionRepository
	summarizer *Summarizer
	pipeline   *audio.Pipeline
	storage    *audio.Storage
	progress   *ProgressHub
	logger     *logrus.Logger
	now        func() time.Time
}

// NewStageService creates a stage service.
func NewStageService(
	sessions repository.SessionRepository,
	summarizer *Summarizer,
	pipeline *audio.Pipeline,
	storage *audio.Storage,
	progress *ProgressHub,
	logger *logrus.Logger,
) *StageService {
	return &StageService{
		sessions:   sessions,
		summarizer: summarizer,
		pipeline:   pipeline,
		storage:    storage,
		progress:   progress,
		logger:     logger,
		now:        time.Now,
	}
}

// AudioResult is the outcome of an upload.
type AudioResult struct {
	Session    *models.Session `json:"session"`
	Transcript *audio.Result   `json:"transcript"`
}

// load fetches the session, checks the caller's version and the stage gate.
func (s *StageService) load(ctx context.Context, ownerID, id uuid.UUID, n, expectedVersion int) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && session.Version != expectedVersion {
		return nil, models.ErrVersionConflict
	}
	if err := workflow.RequireAccessible(session, n); err != nil {
		return nil, err
	}
	return session, nil
}

// SaveDraft stores stage input without approving it. An identical draft
// writes nothing and keeps the version.
func (s *StageService) SaveDraft(ctx context.Context, ownerID, id uuid.UUID, n int, draft models.StageDraft, expectedVersion int) (*models.Session, error) {
	if draft.Empty() {
		return nil, models.NewValidationError("", "draft contains no fields")
	}
	session, err := s.load(ctx, ownerID, id, n, expectedVersion)
	if err != nil {
		return nil, err
	}

	changed, err := workflow.SaveDraft(session, n, draft)
	if err != nil {
		return nil, err
	}
	if !changed {
		return session, nil
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Generate applies draft (if any), asks the completion backend for the
// stage output and stores it unapproved. Nothing is written on failure.
func (s *StageService) Generate(ctx context.Context, ownerID, id uuid.UUID, n int, draft models.StageDraft, expectedVersion int) (*models.Session, error) {
	session, err := s.load(ctx, ownerID, id, n, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !draft.Empty() {
		if _, err := workflow.SaveDraft(session, n, draft); err != nil {
			return nil, err
		}
	}

	in, err := stageInput(session, n)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"session_id": id, "stage": n})
	log.Info("Generating stage output")
	s.publish(id, n, OperationGeneration, "started", 0, 0, "")

	output, err := s.summarizer.Generate(ctx, n, in, func(done, total int) {
		s.publish(id, n, OperationGeneration, "progress", done, total, "")
	})
	if err != nil {
		s.publish(id, n, OperationGeneration, "failed", 0, 0, err.Error())
		log.WithError(err).Warn("Stage generation failed")
		return nil, err
	}

	if err := workflow.SetOutput(session, n, output); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	s.publish(id, n, OperationGeneration, "finished", 0, 0, "")
	return session, nil
}

// Approve marks stage n final and opens the next stage.
func (s *StageService) Approve(ctx context.Context, ownerID, id uuid.UUID, n, expectedVersion int) (*models.Session, error) {
	session, err := s.load(ctx, ownerID, id, n, expectedVersion)
	if err != nil {
		return nil, err
	}
	if session.Stage(n).Approved {
		return session, nil
	}

	if err := workflow.Approve(session, n, s.now()); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":    id,
		"stage":         n,
		"current_stage": session.CurrentStage,
	}).Info("Stage approved")
	return session, nil
}

// AttachAudio stores a recording, transcribes it and saves the transcript
// as the stage draft. Input is validated before any remote call.
func (s *StageService) AttachAudio(ctx context.Context, ownerID, id uuid.UUID, n int, filename string, r io.Reader, size int64, expectedVersion int) (*AudioResult, error) {
	session, err := s.load(ctx, ownerID, id, n, expectedVersion)
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.Validate(filename, size); err != nil {
		return nil, err
	}
	if !s.pipeline.Configured() {
		return nil, fmt.Errorf("transcription: %w", models.ErrNotConfigured)
	}

	name, err := s.storage.Save(id, n, filename, r, size)
	if err != nil {
		return nil, err
	}
	path, err := s.storage.Path(name)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"session_id": id, "stage": n, "file": name})
	log.Info("Recording stored; transcribing")

	result, err := s.pipeline.Transcribe(ctx, path, audio.Options{
		Prompt: session.Participants,
		OnProgress: func(e audio.Event) {
			s.publish(id, n, OperationTranscription, e.Kind, e.Segment, e.Total, e.Message)
		},
	})
	if err != nil {
		s.publish(id, n, OperationTranscription, "failed", 0, 0, err.Error())
		log.WithError(err).Warn("Transcription failed; recording kept")
		return nil, err
	}

	if err := workflow.AttachRecording(session, n, name, result.Text); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	if result.Partial() {
		log.WithField("missing_segments", result.MissingSegments).Warn("Transcript is incomplete")
	}
	return &AudioResult{Session: session, Transcript: result}, nil
}

// AudioPath resolves the stored recording of stage n for playback.
func (s *StageService) AudioPath(ctx context.Context, ownerID, id uuid.UUID, n int) (string, error) {
	if !models.ValidStage(n) {
		return "", models.ErrInvalidStage
	}
	session, err := s.sessions.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	name := session.Stage(n).AudioPath
	if name == "" {
		return "", models.ErrAudioNotFound
	}
	return s.storage.Path(name)
}

func (s *StageService) publish(id uuid.UUID, n int, op, kind string, step, total int, msg string) {
	if s.progress == nil {
		return
	}
	s.progress.Publish(ProgressEvent{
		SessionID: id,
		Stage:     n,
		Operation: op,
		Kind:      kind,
		Step:      step,
		Total:     total,
		Message:   msg,
	})
}

// stageInput collects the template values of stage n from the session.
func stageInput(session *models.Session, n int) (prompts.Input, error) {
	problem := strings.TrimSpace(session.Problem())
	if problem == "" {
		return prompts.Input{}, models.NewValidationError("input_text", "stage 1 needs a problem description")
	}
	st := session.Stage(n)

	switch n {
	case models.StageFraming:
		return prompts.Input{
			Problem:      problem,
			Participants: session.Participants,
			Context:      st.Notes,
		}, nil

	case models.StagePerspectives:
		body := firstNonEmpty(st.Transcript, st.InputText)
		if body == "" {
			return prompts.Input{}, models.NewValidationError("transcript", "stage 2 needs a transcript or written input")
		}
		return prompts.Input{Problem: problem, Body: body}, nil

	case models.StageDeepening:
		body := firstNonEmpty(st.Transcript, st.InputText)
		if body == "" {
			return prompts.Input{}, models.NewValidationError("transcript", "stage 3 needs a transcript or written input")
		}
		return prompts.Input{
			Problem:              problem,
			SelectedPerspectives: firstNonEmpty(session.Stage(models.StagePerspectives).Notes, notDocumented),
			Body:                 body,
		}, nil

	case models.StageActionPlan:
		deepening := session.Stage(models.StageDeepening)
		body := firstNonEmpty(st.Transcript, deepening.Notes, deepening.AIOutput)
		if body == "" {
			return prompts.Input{}, models.NewValidationError("transcript", "stage 4 needs conclusions or a transcript")
		}
		var supplement []string
		for _, v := range []string{st.InputText, st.Notes} {
			if v = strings.TrimSpace(v); v != "" {
				supplement = append(supplement, v)
			}
		}
		return prompts.Input{
			Problem:    problem,
			Body:       body,
			Supplement: strings.Join(supplement, "\n\n"),
		}, nil
	}
	return prompts.Input{}, models.ErrInvalidStage
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
