// Package resilience guards calls to optional backing services.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrOpen is returned by Call while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds configuration for the circuit breaker.
type Config struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // time open before a trial call
	SuccessThreshold int           `json:"success_threshold"` // trial successes needed to close
}

// CircuitBreaker stops calling a failing dependency for RecoveryTimeout
// after FailureThreshold consecutive failures.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	nextAttempt time.Time
}

// NewCircuitBreaker fills zero config fields with defaults.
func NewCircuitBreaker(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Call runs fn unless the breaker is open. fn's error is returned as is.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrOpen
	}

	err := fn()
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}
	if cb.now().Before(cb.nextAttempt) {
		return false
	}
	cb.state = StateHalfOpen
	cb.successes = 0
	return true
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.successes = 0
	if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = StateOpen
		cb.nextAttempt = cb.now().Add(cb.config.RecoveryTimeout)
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
		}
	}
}

// State returns the current state. An open breaker whose timeout elapsed
// still reports open until the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}

// Stats reports the breaker state for health endpoints.
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"state":    cb.state.String(),
		"failures": cb.failures,
	}
}
