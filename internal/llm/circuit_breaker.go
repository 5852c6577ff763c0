package llm

import (
	"fmt"
	"sync"
	"time"
)

// CircuitBreaker keeps one breaker per key, e.g. per operation.
type CircuitBreaker struct {
	breakers         map[string]*Breaker
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
	onStateChange    func(key string, from, to BreakerState)
	mu               sync.RWMutex
}

// Breaker represents a single circuit breaker
type Breaker struct {
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration

	failures    uint32
	successes   uint32
	lastFailure time.Time
	state       BreakerState
	mu          sync.Mutex
}

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// NewCircuitBreaker creates a breaker set that opens after failureThreshold
// consecutive failures and probes again after timeout.
func NewCircuitBreaker(failureThreshold uint32, timeout time.Duration) *CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		successThreshold: 1,
		timeout:          timeout,
	}
}

// OnStateChange registers a callback for transitions.
func (cb *CircuitBreaker) OnStateChange(fn func(key string, from, to BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute executes a function with circuit breaker protection. Errors for
// which countable returns false do not move the breaker.
func (cb *CircuitBreaker) Execute(key string, fn func() error, countable func(error) bool) error {
	breaker := cb.getOrCreateBreaker(key)

	if from, to, allowed := breaker.allow(); !allowed {
		return fmt.Errorf("%w for %s", ErrCircuitOpen, key)
	} else if from != to {
		cb.notify(key, from, to)
	}

	err := fn()

	var from, to BreakerState
	switch {
	case err == nil:
		from, to = breaker.recordSuccess()
	case countable == nil || countable(err):
		from, to = breaker.recordFailure()
	default:
		return err
	}
	if from != to {
		cb.notify(key, from, to)
	}

	return err
}

func (cb *CircuitBreaker) notify(key string, from, to BreakerState) {
	cb.mu.RLock()
	fn := cb.onStateChange
	cb.mu.RUnlock()
	if fn != nil {
		fn(key, from, to)
	}
}

// getOrCreateBreaker gets or creates a breaker for a key
func (cb *CircuitBreaker) getOrCreateBreaker(key string) *Breaker {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if exists {
		return breaker
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cb.breakers[key]; exists {
		return breaker
	}

	breaker = &Breaker{
		failureThreshold: cb.failureThreshold,
		successThreshold: cb.successThreshold,
		timeout:          cb.timeout,
		state:            StateClosed,
	}

	cb.breakers[key] = breaker
	return breaker
}

// allow moves Open to HalfOpen once the timeout has passed and reports
// whether a call may proceed.
func (b *Breaker) allow() (BreakerState, BreakerState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	if b.state == StateOpen && time.Since(b.lastFailure) > b.timeout {
		b.state = StateHalfOpen
		b.failures = 0
		b.successes = 0
	}
	return from, b.state, b.state != StateOpen
}

func (b *Breaker) recordFailure() (BreakerState, BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
	}
	return from, b.state
}

func (b *Breaker) recordSuccess() (BreakerState, BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	b.successes++

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
	return from, b.state
}

// GetState returns the state of a specific breaker
func (cb *CircuitBreaker) GetState(key string) BreakerState {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if !exists {
		return StateClosed
	}

	breaker.mu.Lock()
	defer breaker.mu.Unlock()
	return breaker.state
}

// States returns the state of every known breaker.
func (cb *CircuitBreaker) States() map[string]string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	states := make(map[string]string, len(cb.breakers))
	for key, breaker := range cb.breakers {
		breaker.mu.Lock()
		states[key] = breaker.state.String()
		breaker.mu.Unlock()
	}
	return states
}

// Reset resets a specific breaker
func (cb *CircuitBreaker) Reset(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if breaker, exists := cb.breakers[key]; exists {
		breaker.mu.Lock()
		breaker.state = StateClosed
		breaker.failures = 0
		breaker.successes = 0
		breaker.mu.Unlock()
	}
}
