package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// CompleterFactory builds a completion backend from configuration.
type CompleterFactory func(cfg config.LLMConfig) (Completer, error)

// TranscriberFactory builds a transcription backend from configuration.
type TranscriberFactory func(cfg config.TranscriptionConfig) (Transcriber, error)

// Registry maps backend names to factories.
type Registry struct {
	completers   map[string]CompleterFactory
	transcribers map[string]TranscriberFactory
	mu           sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		completers:   make(map[string]CompleterFactory),
		transcribers: make(map[string]TranscriberFactory),
	}
}

// RegisterCompleter registers a completion backend.
func (r *Registry) RegisterCompleter(name string, factory CompleterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completers[name] = factory
}

// RegisterTranscriber registers a transcription backend.
func (r *Registry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribers[name] = factory
}

// NewCompleter builds the backend named by cfg.Backend.
func (r *Registry) NewCompleter(cfg config.LLMConfig) (Completer, error) {
	r.mu.RLock()
	factory, ok := r.completers[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm backend %q (available: %v)", cfg.Backend, r.names(r.completers))
	}
	return factory(cfg)
}

// NewTranscriber builds the backend named by cfg.Backend.
func (r *Registry) NewTranscriber(cfg config.TranscriptionConfig) (Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcribers[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transcription backend %q (available: %v)", cfg.Backend, r.names(r.transcribers))
	}
	return factory(cfg)
}

func (r *Registry) names(m interface{}) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	switch m := m.(type) {
	case map[string]CompleterFactory:
		for name := range m {
			names = append(names, name)
		}
	case map[string]TranscriberFactory:
		for name := range m {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BuildGateway wires the configured backends into a gateway. A backend
// without credentials is left unset so calls answer ErrNotConfigured while
// the rest of the application keeps working.
func (r *Registry) BuildGateway(cfg *config.Config, logger *logrus.Logger) (*Gateway, error) {
	completer, err := r.NewCompleter(cfg.LLM)
	if err != nil {
		if !errors.Is(err, models.ErrNotConfigured) {
			return nil, err
		}
		logger.WithField("backend", cfg.LLM.Backend).Warn("Completion backend not configured; generation is disabled")
		completer = nil
	}

	transcriber, err := r.NewTranscriber(cfg.Transcription)
	if err != nil {
		if !errors.Is(err, models.ErrNotConfigured) {
			return nil, err
		}
		logger.WithField("backend", cfg.Transcription.Backend).Warn("Transcription backend not configured; audio upload is disabled")
		transcriber = nil
	}

	return NewGateway(completer, transcriber, logger,
		WithDefaults(cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature),
		WithLanguage(cfg.Transcription.Language),
		WithTimeout(cfg.LLM.Timeout),
		WithRetryPolicy(RetryPolicy{
			MaxRetries: cfg.LLM.MaxRetries,
			BaseDelay:  cfg.LLM.RetryBaseDelay,
			MaxDelay:   30 * cfg.LLM.RetryBaseDelay,
		}),
		WithRateLimiter(NewTokenBucketLimiter(cfg.LLM.RequestsPerMinute, cfg.LLM.RequestsPerMinute)),
	), nil
}
