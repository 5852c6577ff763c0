package local

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	openaiprovider "github.com/Messijah/PedagogiskDialog/internal/providers/openai"
)

// Name is the registry key of OpenAI-compatible self-hosted servers such as
// whisper.cpp, faster-whisper-server, Ollama or vLLM.
const Name = "local"

// NewCompleter creates a completion backend for an OpenAI-compatible server.
func NewCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	client, err := newClient(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return openaiprovider.New(Name, client, cfg.Model), nil
}

// NewTranscriber creates a transcription backend for an OpenAI-compatible server.
func NewTranscriber(cfg config.TranscriptionConfig) (llm.Transcriber, error) {
	client, err := newClient(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return openaiprovider.New(Name, client, cfg.Model), nil
}

func newClient(baseURL, apiKey string) (*openai.Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required for OpenAI-compatible provider: %w", models.ErrNotConfigured)
	}

	// Local servers usually ignore the key but the client always sends one.
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = normalizeBaseURL(baseURL)
	return openai.NewClientWithConfig(clientConfig), nil
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL
	}
	return baseURL + "/v1"
}
