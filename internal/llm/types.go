package llm

import (
	"context"
)

// Message roles understood by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one role-tagged prompt sent to the completion API.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
}

// CompletionResponse holds the generated text.
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TranscriptionRequest points at an audio file on disk. The file is opened
// per attempt so retries can resend it.
type TranscriptionRequest struct {
	FilePath string `json:"file_path"`
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
	// Prompt can carry vocabulary hints such as participant names.
	Prompt string `json:"prompt,omitempty"`
}

// Completer produces text from a prompt.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}
