package gateway

import (
	"errors"
	"sync"
	"time"
)

// Returned by Allow (and therefore Invoke) when the breaker is open; callers
// should skip the dependent layer for the current message rather than wait.
var ErrCircuitOpen = errors.New("gateway: circuit open")

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
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

var (
	DefaultFailureThreshold = 10
	DefaultSuccessThreshold = 3
	DefaultCooldown         = 30 * time.Second
)

// Breaker is a CLOSED/OPEN/HALF_OPEN circuit breaker with an injected clock,
// so state transitions are testable without real timers.
//
// Transitions: CLOSED -> OPEN after FailureThreshold consecutive failures;
// OPEN -> HALF_OPEN once Cooldown has elapsed; HALF_OPEN -> CLOSED after
// SuccessThreshold consecutive successes; HALF_OPEN -> OPEN on any failure.
type Breaker struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration

	// Now is the clock used for cooldown checks. Defaults to time.Now.
	Now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

func NewBreaker() *Breaker {
	return &Breaker{
		FailureThreshold: DefaultFailureThreshold,
		SuccessThreshold: DefaultSuccessThreshold,
		Cooldown:         DefaultCooldown,
		Now:              time.Now,
	}
}

// Allow reports whether an attempt may proceed. Returns ErrCircuitOpen
// without touching the network when the breaker is open and the cooldown has
// not yet elapsed; when it has, the breaker moves to half-open and the
// attempt is allowed as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return nil
	}
	if b.Now().Sub(b.openedAt) < b.Cooldown {
		return ErrCircuitOpen
	}
	b.state = StateHalfOpen
	b.successes = 0
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		// any failure while probing re-opens immediately
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.Now()
	b.failures = 0
	b.successes = 0
	breakerTripCount.Inc()
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
