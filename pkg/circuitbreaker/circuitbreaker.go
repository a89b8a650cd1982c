package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

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
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after more than maxFailures failures inside window and
// lets one trial call through once timeout has passed since the last failure.
type CircuitBreaker struct {
	maxFailures     int
	window          time.Duration
	timeout         time.Duration
	failures        []time.Time
	lastFailureTime time.Time
	state           State
	trialInFlight   bool
	now             func() time.Time
	mu              sync.Mutex
}

func NewCircuitBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreakerWithWindow(maxFailures, timeout, 60*time.Second)
}

func NewCircuitBreakerWithWindow(maxFailures int, timeout time.Duration, window time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		window:      window,
		timeout:     timeout,
		state:       StateClosed,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is open, in which case fallback runs
// instead, or ErrOpen is returned when fallback is nil. fn runs without the
// breaker's lock held. Errors wrapping context.Canceled are not failures.
func (cb *CircuitBreaker) Execute(fn func() error, fallback func() error) error {
	ok, trial := cb.allow()
	if !ok {
		if fallback != nil {
			return fallback()
		}
		return ErrOpen
	}
	err := fn()
	if errors.Is(err, context.Canceled) {
		cb.release(trial)
		return err
	}
	cb.record(err, trial)
	return err
}

// release frees the trial slot without deciding the breaker.
func (cb *CircuitBreaker) release(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false
}

// allow reports whether a call may run and whether it is the half-open trial.
func (cb *CircuitBreaker) allow() (ok, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.failures = cb.failures[:0]
		cb.trialInFlight = true
		return true, true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false, false
		}
		cb.trialInFlight = true
		return true, true
	default:
		return true, false
	}
}

// record applies the outcome of a call. Only the trial decides a half-open
// breaker; calls admitted while closed that finish later are dropped.
func (cb *CircuitBreaker) record(err error, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !trial && cb.state != StateClosed {
		return
	}
	now := cb.now()
	if trial {
		cb.trialInFlight = false
	}
	if err != nil {
		cb.lastFailureTime = now
		cb.failures = append(cb.failures, now)
		cb.cleanOldFailures(now)
		if trial || len(cb.failures) > cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}
	cb.cleanOldFailures(now)
	if trial {
		cb.state = StateClosed
		cb.failures = cb.failures[:0]
	}
}

func (cb *CircuitBreaker) cleanOldFailures(now time.Time) {
	cutoff := now.Add(-cb.window)
	keep := 0
	for _, t := range cb.failures {
		if t.After(cutoff) {
			cb.failures[keep] = t
			keep++
		}
	}
	cb.failures = cb.failures[:keep]
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
