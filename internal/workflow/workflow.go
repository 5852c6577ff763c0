// Package workflow implements the four-stage session state machine.
//
// A stage n > 1 is accessible only once stage n-1 is approved. Approval
// advances current_stage; revising an approved stage re-opens it and
// withdraws the approval of every later stage, keeping their content.
package workflow

import (
	"fmt"
	"time"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// IsStageAccessible reports whether stage n can be edited or generated.
func IsStageAccessible(s *models.Session, n int) bool {
	if !models.ValidStage(n) {
		return false
	}
	if n == 1 {
		return true
	}
	return s.Stages[n-2].Approved
}

// Progress returns the fraction of approved stages in [0,1].
func Progress(s *models.Session) float64 {
	approved := 0
	for i := range s.Stages {
		if s.Stages[i].Approved {
			approved++
		}
	}
	return float64(approved) / float64(models.StageCount)
}

// CurrentStage derives current_stage from the approval flags.
func CurrentStage(s *models.Session) int {
	n := s.ApprovedPrefix() + 1
	if n > models.StageCount {
		n = models.StageCount
	}
	return n
}

// RequireAccessible returns ErrStageLocked or ErrInvalidStage when stage n
// cannot be touched.
func RequireAccessible(s *models.Session, n int) error {
	if !models.ValidStage(n) {
		return fmt.Errorf("%w: %d", models.ErrInvalidStage, n)
	}
	if !IsStageAccessible(s, n) {
		return fmt.Errorf("%w: stage %d", models.ErrStageLocked, n)
	}
	return nil
}

// Approve marks stage n final and advances the session.
func Approve(s *models.Session, n int, now time.Time) error {
	if err := RequireAccessible(s, n); err != nil {
		return err
	}
	st := s.Stage(n)
	if st.AIOutput == "" {
		return fmt.Errorf("%w: stage %d", models.ErrNothingToApprove, n)
	}
	if st.Approved {
		return nil
	}

	st.Approved = true
	t := now.UTC()
	st.CompletedAt = &t
	sync(s)
	return nil
}

// SaveDraft applies a partial update to stage n without approving it. It
// reports whether anything changed; an identical draft is a no-op.
func SaveDraft(s *models.Session, n int, d models.StageDraft) (bool, error) {
	if err := RequireAccessible(s, n); err != nil {
		return false, err
	}
	st := s.Stage(n)

	changed := false
	apply := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	apply(&st.InputText, d.InputText)
	apply(&st.Notes, d.Notes)
	apply(&st.Transcript, d.Transcript)
	apply(&st.AIOutput, d.AIOutput)

	if changed {
		Reopen(s, n)
	}
	return changed, nil
}

// SetOutput stores freshly generated output for stage n. Regenerating an
// approved stage overwrites the previous output and re-opens it.
func SetOutput(s *models.Session, n int, output string) error {
	if err := RequireAccessible(s, n); err != nil {
		return err
	}
	s.Stage(n).AIOutput = output
	Reopen(s, n)
	return nil
}

// AttachRecording records a stored audio file and its transcript on stage n.
func AttachRecording(s *models.Session, n int, audioPath, transcript string) error {
	if err := RequireAccessible(s, n); err != nil {
		return err
	}
	st := s.Stage(n)
	st.AudioPath = audioPath
	st.Transcript = transcript
	Reopen(s, n)
	return nil
}

// Reopen withdraws the approval of stage n and of every later stage.
// Stage content is kept. It is a no-op for unapproved stages.
func Reopen(s *models.Session, n int) {
	if !models.ValidStage(n) {
		return
	}
	for i := n - 1; i < models.StageCount; i++ {
		s.Stages[i].Approved = false
		s.Stages[i].CompletedAt = nil
	}
	sync(s)
}

// Status builds the progress view of a session.
func Status(s *models.Session) models.SessionStatus {
	status := models.SessionStatus{
		SessionID:    s.ID,
		CurrentStage: s.CurrentStage,
		Completed:    s.Completed,
		Progress:     Progress(s),
		Version:      s.Version,
		Stages:       make([]models.StageStatus, 0, models.StageCount),
	}
	for i := range s.Stages {
		st := &s.Stages[i]
		status.Stages = append(status.Stages, models.StageStatus{
			Number:      i + 1,
			Title:       models.StageTitle(i + 1),
			Accessible:  IsStageAccessible(s, i+1),
			Approved:    st.Approved,
			HasOutput:   st.AIOutput != "",
			HasAudio:    st.AudioPath != "",
			CompletedAt: st.CompletedAt,
		})
	}
	return status
}

func sync(s *models.Session) {
	s.CurrentStage = CurrentStage(s)
	s.Completed = s.Stages[models.StageCount-1].Approved
}
