package services

import (
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/audio"
	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/prompts"
	"github.com/Messijah/PedagogiskDialog/internal/repository"
)

// Services holds all service instances
type Services struct {
	Sessions *SessionService
	Stages   *StageService
	Progress *ProgressHub
	// Operations bounds long-running stage work and cancels it on shutdown.
	Operations *Operations

	// Gateway is exposed for metrics and health reporting.
	Gateway *llm.Gateway
	Storage *audio.Storage
}

// NewServices creates all service instances
func NewServices(
	cfg *config.Config,
	sessions repository.SessionRepository,
	gateway *llm.Gateway,
	catalogue *prompts.Catalogue,
	storage *audio.Storage,
	segmenter audio.Segmenter,
	logger *logrus.Logger,
) *Services {
	progress := NewProgressHub(logger)
	summarizer := NewSummarizer(gateway, catalogue, cfg.LLM.MaxChunkChars, cfg.LLM.MaxConcurrency, logger)
	pipeline := audio.NewPipeline(gateway, segmenter, cfg.Audio, logger)

	logger.WithFields(logrus.Fields{
		"llm_backend":           cfg.LLM.Backend,
		"transcription_backend": cfg.Transcription.Backend,
		"completion_ready":      gateway.CompletionConfigured(),
		"transcription_ready":   gateway.TranscriptionConfigured(),
	}).Info("Services initialized")

	return &Services{
		Sessions:   NewSessionService(sessions, logger),
		Stages:     NewStageService(sessions, summarizer, pipeline, storage, progress, logger),
		Progress:   progress,
		Operations: NewOperations(cfg.Server.OperationTimeout),
		Gateway:    gateway,
		Storage:    storage,
	}
}
