package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when a remote backend has no credentials or endpoint.
	ErrNotConfigured = errors.New("backend not configured")
	// ErrCompletionFailed wraps a completion call that failed after retries.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrTranscriptionFailed wraps a transcription call that failed after retries.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrAllSegmentsFailed is returned when no audio segment could be transcribed.
	ErrAllSegmentsFailed = errors.New("all audio segments failed to transcribe")
	// ErrSessionNotFound is returned when a session does not exist or is not owned by the caller.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStageLocked is returned when the previous stage has not been approved.
	ErrStageLocked = errors.New("stage is locked until the previous stage is approved")
	// ErrVersionConflict is returned when a session was modified concurrently.
	ErrVersionConflict = errors.New("session was modified by another request")
	// ErrNothingToApprove is returned when a stage has no generated output yet.
	ErrNothingToApprove = errors.New("stage has no generated output to approve")
	// ErrInvalidStage is returned for stage numbers outside 1-4.
	ErrInvalidStage = errors.New("stage must be between 1 and 4")
	// ErrAudioNotFound is returned when a stage has no stored recording.
	ErrAudioNotFound = errors.New("no audio stored for stage")
)

// ValidationError is returned for rejected user input. No state is changed.
type ValidationError struct {
	Field   string
	Message string
	// TooLarge marks size violations so the HTTP layer can answer 413.
	TooLarge bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
