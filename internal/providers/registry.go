package providers

import (
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/providers/local"
	"github.com/Messijah/PedagogiskDialog/internal/providers/openai"
)

// NewRegistry returns a registry with every built-in backend.
func NewRegistry() *llm.Registry {
	r := llm.NewRegistry()
	Register(r)
	return r
}

// Register adds the built-in completion and transcription backends.
func Register(r *llm.Registry) {
	r.RegisterCompleter(openai.Name, openai.NewCompleter)
	r.RegisterTranscriber(openai.Name, openai.NewTranscriber)
	r.RegisterCompleter(local.Name, local.NewCompleter)
	r.RegisterTranscriber(local.Name, local.NewTranscriber)
}
