package services

import (
	"context"
	"time"
)

// Operations hands out contexts for generation and transcription runs.
// fasthttp request contexts are not cancelled when the client leaves, so
// these runs are bounded by timeout and cancelled together by Shutdown.
type Operations struct {
	timeout time.Duration
	base    context.Context
	cancel  context.CancelFunc
}

// NewOperations creates an operation source. A timeout of zero or less
// leaves runs bounded only by Shutdown.
func NewOperations(timeout time.Duration) *Operations {
	base, cancel := context.WithCancel(context.Background())
	return &Operations{timeout: timeout, base: base, cancel: cancel}
}

// Start returns the context for one run. Callers must call the returned
// cancel func.
func (o *Operations) Start() (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(o.base, o.timeout)
	}
	return context.WithCancel(o.base)
}

// Shutdown cancels every run in flight and every run started afterwards.
func (o *Operations) Shutdown() {
	o.cancel()
}
