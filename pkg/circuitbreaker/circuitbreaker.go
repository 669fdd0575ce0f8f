// Package circuitbreaker implements a small three-state breaker used to
// guard calls to flaky dependencies (the risk predictor, the redis broker).
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Settings configures a breaker. FailureThreshold consecutive failures open
// it; after Timeout it lets one probe call through. Interval, when set,
// forgets stale failures while the breaker is still closed.
type Settings struct {
	Name             string
	FailureThreshold int
	Interval         time.Duration
	Timeout          time.Duration
}

type CircuitBreaker struct {
	name      string
	threshold int
	interval  time.Duration
	timeout   time.Duration

	mu          sync.Mutex
	state       state
	failures    int
	lastFailure time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		name:      settings.Name,
		threshold: settings.FailureThreshold,
		interval:  settings.Interval,
		timeout:   settings.Timeout,
	}
}

// Execute runs fn unless the breaker is open. A success in the half-open
// state closes the breaker; a failure reopens it immediately.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if time.Since(cb.lastFailure) <= cb.timeout {
			return fmt.Errorf("%s: %w", cb.name, ErrOpen)
		}
		cb.state = stateHalfOpen
	case stateClosed:
		if cb.interval > 0 && cb.failures > 0 && time.Since(cb.lastFailure) > cb.interval {
			cb.failures = 0
		}
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == stateHalfOpen || cb.failures >= cb.threshold {
			cb.state = stateOpen
		}
		return
	}

	cb.state = stateClosed
	cb.failures = 0
}
