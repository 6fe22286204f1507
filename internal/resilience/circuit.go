// Package resilience provides retry and circuit breaker patterns for the
// remote services the lead pipeline depends on.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is where a breaker sits between its guarded calls.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	// CircuitHalfOpen lets exactly one probe call through.
	CircuitHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned without calling the service while the breaker
// is open or a probe is already in flight.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls when a breaker opens and how long it stays
// open.
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration

	// ShouldTrip decides whether an error counts as a service failure.
	// Nil counts every error except caller cancellation.
	ShouldTrip func(err error) bool

	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 straight failures and probes
// again after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// CircuitBreaker guards one remote service. It is safe for concurrent use by
// the enrichment workers.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool

	nowFunc func() time.Time
}

// NewCircuitBreaker returns a closed breaker for the named service. Zero
// config fields take their defaults and state changes go to the global
// logger unless OnStateChange is set.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = countsAsFailure
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to CircuitState) {
			zap.L().Warn("circuit breaker state change",
				zap.String("service", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	return &CircuitBreaker{name: name, cfg: cfg, nowFunc: time.Now}
}

func countsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Name returns the guarded service name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State reports the current state. An open breaker whose timeout has elapsed
// reports half-open even before the probe is admitted.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooledDown() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Execute calls fn unless the breaker rejects it.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute for calls that return a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !cb.admit() {
		return zero, ErrCircuitOpen
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if !cb.cooledDown() {
			return false
		}
		cb.setState(CircuitHalfOpen)
	}
	if cb.state == CircuitHalfOpen {
		if cb.probing {
			return false
		}
		cb.probing = true
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := cb.cfg.ShouldTrip(err)
	if cb.state == CircuitHalfOpen {
		cb.probing = false
		if failed {
			cb.trip()
		} else {
			cb.failures = 0
			cb.setState(CircuitClosed)
		}
		return
	}

	if !failed {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.nowFunc()
	cb.setState(CircuitOpen)
}

func (cb *CircuitBreaker) setState(to CircuitState) {
	if from := cb.state; from != to {
		cb.state = to
		cb.cfg.OnStateChange(from, to)
	}
}
