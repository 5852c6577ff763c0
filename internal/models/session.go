package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StageCount is the number of stages in a dialogue session.
const StageCount = 4

// Stage numbers.
const (
	StageFraming      = 1
	StagePerspectives = 2
	StageDeepening    = 3
	StageActionPlan   = 4
)

var stageTitles = [StageCount]string{
	"Problemformulering",
	"Perspektiv",
	"Fördjupad dialog",
	"Handlingsplan",
}

// StageTitle returns the display title of stage n.
func StageTitle(n int) string {
	if !ValidStage(n) {
		return ""
	}
	return stageTitles[n-1]
}

// ValidStage reports whether n names one of the four stages.
func ValidStage(n int) bool {
	return n >= 1 && n <= StageCount
}

// Stage holds the inputs and outputs of one workflow stage.
type Stage struct {
	Number    int    `json:"number"`
	InputText string `json:"input_text"`
	// Notes is the facilitator's curated take-away: background context in
	// stage 1, selected perspectives in stage 2, conclusions in stage 3 and
	// supplementary wishes for the plan in stage 4.
	Notes       string     `json:"notes"`
	AudioPath   string     `json:"audio_path,omitempty"`
	Transcript  string     `json:"transcript,omitempty"`
	AIOutput    string     `json:"ai_output"`
	Approved    bool       `json:"approved"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Session is one guided dialogue, persisted as a single row.
type Session struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	Name            string            `json:"name"`
	FacilitatorName string            `json:"facilitator_name"`
	Participants    string            `json:"participants"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CurrentStage    int               `json:"current_stage"`
	Completed       bool              `json:"completed"`
	Version         int               `json:"version"`
	Stages          [StageCount]Stage `json:"stages"`
}

// NewSession returns a session positioned at stage 1.
func NewSession(ownerID uuid.UUID, name, facilitator, participants string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Name:            name,
		FacilitatorName: facilitator,
		Participants:    participants,
		CreatedAt:       now,
		UpdatedAt:       now,
		CurrentStage:    StageFraming,
		Version:         1,
	}
	for i := range s.Stages {
		s.Stages[i].Number = i + 1
	}
	return s
}

// Stage returns a pointer to stage n (1-based) or nil when n is out of range.
func (s *Session) Stage(n int) *Stage {
	if !ValidStage(n) {
		return nil
	}
	return &s.Stages[n-1]
}

// ApprovedPrefix counts contiguously approved stages starting at stage 1.
func (s *Session) ApprovedPrefix() int {
	n := 0
	for i := range s.Stages {
		if !s.Stages[i].Approved {
			break
		}
		n++
	}
	return n
}

// Problem returns the problem formulation entered in stage 1.
func (s *Session) Problem() string {
	return s.Stages[0].InputText
}

// AudioPaths returns every stored recording referenced by the session.
func (s *Session) AudioPaths() []string {
	var paths []string
	for i := range s.Stages {
		if s.Stages[i].AudioPath != "" {
			paths = append(paths, s.Stages[i].AudioPath)
		}
	}
	return paths
}

// Validate checks the stage ordering rules. The store calls it before
// every write so no ordering gap can be persisted.
func (s *Session) Validate() error {
	if !ValidStage(s.CurrentStage) {
		return fmt.Errorf("current_stage %d out of range", s.CurrentStage)
	}
	for i := 1; i < StageCount; i++ {
		if s.Stages[i].Approved && !s.Stages[i-1].Approved {
			return fmt.Errorf("stage %d approved before stage %d", i+1, i)
		}
	}
	want := s.ApprovedPrefix() + 1
	if want > StageCount {
		want = StageCount
	}
	if s.CurrentStage != want {
		return fmt.Errorf("current_stage %d does not match approvals (want %d)", s.CurrentStage, want)
	}
	if s.Completed != s.Stages[StageCount-1].Approved {
		return fmt.Errorf("completed flag does not match stage %d approval", StageCount)
	}
	return nil
}

// StageDraft carries a partial stage update. Nil fields are left unchanged.
type StageDraft struct {
	InputText  *string `json:"input_text,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
	AIOutput   *string `json:"ai_output,omitempty"`
}

// Empty reports whether the draft carries no field at all.
func (d StageDraft) Empty() bool {
	return d.InputText == nil && d.Notes == nil && d.Transcript == nil && d.AIOutput == nil
}

// StageStatus summarises one stage for listings and progress views.
type StageStatus struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Accessible  bool       `json:"accessible"`
	Approved    bool       `json:"approved"`
	HasOutput   bool       `json:"has_output"`
	HasAudio    bool       `json:"has_audio"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SessionStatus is the progress view of a session.
type SessionStatus struct {
	SessionID    uuid.UUID     `json:"session_id"`
	CurrentStage int           `json:"current_stage"`
	Completed    bool          `json:"completed"`
	Progress     float64       `json:"progress"`
	Version      int           `json:"version"`
	Stages       []StageStatus `json:"stages"`
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	FacilitatorName string    `json:"facilitator_name" db:"facilitator_name"`
	CurrentStage    int       `json:"current_stage" db:"current_stage"`
	Completed       bool      `json:"completed" db:"completed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
