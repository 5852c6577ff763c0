package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// Name is the registry key of the hosted OpenAI backend.
const Name = "openai"

// Provider talks to the OpenAI chat and audio endpoints. It implements both
// llm.Completer and llm.Transcriber.
type Provider struct {
	name   string
	model  string
	client *openai.Client
}

// New wraps an existing client. model is used when a request names none.
func New(name string, client *openai.Client, model string) *Provider {
	return &Provider{
		name:   name,
		model:  model,
		client: client,
	}
}

// NewCompleter creates the hosted completion backend.
func NewCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required: %w", models.ErrNotConfigured)
	}
	return New(Name, openai.NewClient(cfg.APIKey), cfg.Model), nil
}

// NewTranscriber creates the hosted Whisper backend.
func NewTranscriber(cfg config.TranscriptionConfig) (llm.Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required: %w", models.ErrNotConfigured)
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return New(Name, openai.NewClient(cfg.APIKey), model), nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.convertRequest(req))
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.ProviderError{Provider: p.name, Err: errors.New("response contained no choices")}
	}

	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Transcribe uploads one audio file and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, req llm.TranscriptionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: req.FilePath,
		Language: req.Language,
		Prompt:   req.Prompt,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", p.wrapError(err)
	}
	return resp.Text, nil
}

func (p *Provider) convertRequest(req llm.CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// wrapError keeps the HTTP status so the gateway can decide on retries.
func (p *Provider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ProviderError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &llm.ProviderError{Provider: p.name, Err: err}
}
