// Package resilience provides a circuit breaker that protects callers from
// repeatedly hitting a failing dependency, such as an unreachable audit
// database.
//
// [Breaker] is a three-state breaker (closed, open, half-open). It is safe
// for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open.
var ErrOpen = errors.New("resilience: circuit open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrOpen] until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through. A failing
	// trial reopens the breaker; enough successful trial calls close it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// Config holds tuning knobs for a [Breaker].
type Config struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// CoolDown is how long the breaker stays open before allowing trial
	// calls. Default: 10s.
	CoolDown time.Duration

	// TrialCalls is the number of successful half-open calls needed to close
	// the breaker again. Default: 1.
	TrialCalls int

	// Now returns the current time. Default: [time.Now].
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// New returns a closed [Breaker]. Zero-value config fields are replaced with
// defaults.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 10 * time.Second
	}
	if cfg.TrialCalls <= 0 {
		cfg.TrialCalls = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Do runs fn if the breaker allows it and records the outcome. While open,
// or while the half-open trial budget is in use, it returns [ErrOpen]
// without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.CoolDown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.inFlight, b.successes = 0, 0
		slog.Info("circuit half-open", "name", b.cfg.Name)
	}
	trial := b.state == StateHalfOpen
	if trial {
		if b.inFlight >= b.cfg.TrialCalls {
			b.mu.Unlock()
			return ErrOpen
		}
		b.inFlight++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.inFlight--
	}
	switch {
	case err != nil && (trial || b.state == StateHalfOpen):
		b.trip()
	case err != nil:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	case trial:
		b.successes++
		if b.successes >= b.cfg.TrialCalls {
			b.state = StateClosed
			b.failures = 0
			slog.Info("circuit closed", "name", b.cfg.Name)
		}
	default:
		b.failures = 0
	}
	return err
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	if b.state != StateOpen {
		slog.Warn("circuit opened", "name", b.cfg.Name, "consecutive_failures", b.failures)
	}
	b.state = StateOpen
	b.openedAt = b.cfg.Now()
	b.failures = 0
}

// State returns the current state. An open breaker whose cool-down has
// elapsed reports [StateHalfOpen]; the transition itself happens on the
// next call to [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.CoolDown {
		return StateHalfOpen
	}
	return b.state
}
