package grader

import (
	"errors"
	"sync"
	"time"
)

// ErrCheckerUnavailable is returned by an open breaker.
var ErrCheckerUnavailable = errors.New("checker unavailable")

type breakerState int

const (
	breakerClosed   breakerState = iota // checker runs normally
	breakerOpen                         // checker skipped until resetTimeout
	breakerHalfOpen                     // one probe decides
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "CLOSED"
	case breakerOpen:
		return "OPEN"
	case breakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// breaker stops the command grader from spawning a checker that keeps
// failing to run. Only infrastructure failures count: a checker that runs
// and rejects the artifact is healthy.
type breaker struct {
	mu           sync.Mutex
	threshold    int
	resetTimeout time.Duration
	state        breakerState
	failures     int
	trippedAt    time.Time
	now          func() time.Time
}

func newBreaker(threshold int, resetTimeout time.Duration) *breaker {
	return &breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// allow reports whether the checker may run now.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if b.now().Sub(b.trippedAt) < b.resetTimeout {
			return ErrCheckerUnavailable
		}
		b.state = breakerHalfOpen
	}
	return nil
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.trippedAt = b.now()
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
