package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// Breaker and limiter keys.
const (
	OpCompletion    = "completion"
	OpTranscription = "transcription"
)

// Gateway is the single path to the remote completion and transcription
// APIs. It adds rate limiting, retries, a circuit breaker per operation and
// metrics around the configured backends. A nil backend answers
// models.ErrNotConfigured.
type Gateway struct {
	completer      Completer
	transcriber    Transcriber
	circuitBreaker *CircuitBreaker
	limiter        RateLimiter
	metrics        *MetricsCollector
	retry          RetryPolicy
	defaults       CompletionRequest
	language       string
	timeout        time.Duration
	logger         *logrus.Logger
}

// GatewayOption is a functional option for configuring the Gateway
type GatewayOption func(*Gateway)

// WithCircuitBreaker configures the circuit breaker
func WithCircuitBreaker(cb *CircuitBreaker) GatewayOption {
	return func(g *Gateway) {
		g.circuitBreaker = cb
	}
}

// WithMetrics configures metrics collection
func WithMetrics(m *MetricsCollector) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithRateLimiter puts a limiter in front of every attempt.
func WithRateLimiter(l RateLimiter) GatewayOption {
	return func(g *Gateway) {
		g.limiter = l
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) GatewayOption {
	return func(g *Gateway) {
		g.retry = p
	}
}

// WithDefaults fills model, max tokens and temperature when a request leaves them unset.
func WithDefaults(model string, maxTokens int, temperature float32) GatewayOption {
	return func(g *Gateway) {
		g.defaults = CompletionRequest{Model: model, MaxTokens: maxTokens, Temperature: temperature}
	}
}

// WithLanguage sets the default transcription language hint.
func WithLanguage(lang string) GatewayOption {
	return func(g *Gateway) {
		g.language = lang
	}
}

// WithTimeout bounds each single attempt.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// NewGateway creates a gateway over the given backends. Either may be nil.
func NewGateway(completer Completer, transcriber Transcriber, logger *logrus.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		completer:      completer,
		transcriber:    transcriber,
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
		metrics:        NewMetricsCollector(),
		retry:          DefaultRetryPolicy(),
		logger:         logger,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = logrus.StandardLogger()
	}
	g.circuitBreaker.OnStateChange(func(key string, from, to BreakerState) {
		g.logger.WithFields(logrus.Fields{
			"breaker": key,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Circuit breaker changed state")
	})

	return g
}

// Name identifies the gateway's completion backend.
func (g *Gateway) Name() string {
	if g.completer == nil {
		return "unconfigured"
	}
	return g.completer.Name()
}

// CompletionConfigured reports whether a completion backend is available.
func (g *Gateway) CompletionConfigured() bool {
	return g.completer != nil
}

// TranscriptionConfigured reports whether a transcription backend is available.
func (g *Gateway) TranscriptionConfigured() bool {
	return g.transcriber != nil
}

// Complete sends a prompt to the completion backend.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if g.completer == nil {
		return nil, fmt.Errorf("completion: %w", models.ErrNotConfigured)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("completion request has no messages")
	}
	if req.Model == "" {
		req.Model = g.defaults.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.defaults.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = g.defaults.Temperature
	}

	backend := g.completer.Name()
	var resp *CompletionResponse
	err := g.call(ctx, OpCompletion, backend, func(callCtx context.Context) error {
		var err error
		resp, err = g.completer.Complete(callCtx, req)
		return err
	})
	if err != nil {
		return nil, g.wrap(err, models.ErrCompletionFailed)
	}

	if g.metrics != nil {
		g.metrics.RecordUsage(resp.Model, resp.Usage)
	}
	return resp, nil
}

// Transcribe sends one audio file to the transcription backend.
func (g *Gateway) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if g.transcriber == nil {
		return "", fmt.Errorf("transcription: %w", models.ErrNotConfigured)
	}
	if req.Language == "" {
		req.Language = g.language
	}

	var text string
	err := g.call(ctx, OpTranscription, g.transcriber.Name(), func(callCtx context.Context) error {
		var err error
		text, err = g.transcriber.Transcribe(callCtx, req)
		return err
	})
	if err != nil {
		return "", g.wrap(err, models.ErrTranscriptionFailed)
	}
	return text, nil
}

// call runs fn under the limiter, breaker and retry policy.
func (g *Gateway) call(ctx context.Context, op, backend string, fn func(context.Context) error) error {
	start := time.Now()
	log := g.logger.WithFields(logrus.Fields{"operation": op, "backend": backend})

	err := g.retry.Do(ctx, func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx, op); err != nil {
				return err
			}
		}
		return g.circuitBreaker.Execute(op, func() error {
			callCtx := ctx
			if g.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return fn(callCtx)
		}, IsRetryable)
	}, func(attempt int, err error) {
		if g.metrics != nil {
			g.metrics.RecordRetry(op, backend)
		}
		log.WithError(err).WithField("attempt", attempt).Warn("Retrying remote call")
	})

	if g.metrics != nil {
		g.metrics.RecordRequest(op, backend, err == nil, time.Since(start))
	}
	if err != nil {
		log.WithError(err).WithField("duration", time.Since(start)).Error("Remote call failed")
		return err
	}

	log.WithField("duration", time.Since(start)).Debug("Remote call succeeded")
	return nil
}

// wrap tags remote failures with kind unless they are configuration or
// cancellation errors.
func (g *Gateway) wrap(err, kind error) error {
	if errors.Is(err, models.ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// GetMetrics returns the collected metrics and breaker states.
func (g *Gateway) GetMetrics() Snapshot {
	var snapshot Snapshot
	if g.metrics != nil {
		snapshot = g.metrics.GetSnapshot()
	}
	snapshot.Breakers = g.circuitBreaker.States()
	return snapshot
}
