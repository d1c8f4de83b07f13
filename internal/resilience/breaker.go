package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State is the circuit breaker state
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON payloads
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrCircuitOpen is returned when the breaker rejects a call
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive failures and waits 60s before a trial call
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// Status is a point-in-time snapshot of a breaker
type Status struct {
	Name          string    `json:"name"`
	State         State     `json:"state"`
	FailureCount  int       `json:"failureCount"`
	OpenedAt      time.Time `json:"openedAt,omitempty"`
	LastFailureAt time.Time `json:"lastFailureAt,omitempty"`
}

// BreakerOption configures a CircuitBreaker
type BreakerOption func(*CircuitBreaker)

// WithClock overrides the time source
func WithClock(now func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) { b.now = now }
}

// WithStateObserver registers an observer notified on every state transition
func WithStateObserver(o Observer) BreakerOption {
	return func(b *CircuitBreaker) {
		if o != nil {
			b.observer = o
		}
	}
}

// CircuitBreaker guards a single upstream dependency.
// While closed, admission is a lock-free read; every transition happens under mu.
type CircuitBreaker struct {
	name     string
	cfg      BreakerConfig
	now      func() time.Time
	observer Observer

	state atomic.Int32

	mu            sync.Mutex
	failureCount  int
	openedAt      time.Time
	lastFailureAt time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a closed breaker for the named dependency
func NewCircuitBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	b := &CircuitBreaker{
		name:     name,
		cfg:      cfg,
		now:      time.Now,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the dependency name
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns the current state
func (b *CircuitBreaker) State() State {
	return State(b.state.Load())
}

// Allow decides whether a call may proceed. trial is true when the caller
// holds the single half-open trial slot and must report back through
// RecordSuccess, RecordFailure or ReleaseTrial with trial set.
func (b *CircuitBreaker) Allow() (trial bool, err error) {
	if b.State() == StateClosed {
		return false, nil
	}

	b.mu.Lock()
	switch b.State() {
	case StateClosed:
		b.mu.Unlock()
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) > b.cfg.Cooldown && !b.trialInFlight {
			b.trialInFlight = true
			b.setState(StateHalfOpen)
			b.mu.Unlock()
			b.observer.StateChanged(b.name, StateOpen, StateHalfOpen)
			return true, nil
		}
	}
	b.mu.Unlock()
	return false, ErrCircuitOpen
}

// RecordSuccess closes a half-open breaker when reported by the trial caller
// and always resets the consecutive failure count.
func (b *CircuitBreaker) RecordSuccess(trial bool) {
	b.mu.Lock()
	b.failureCount = 0
	from := b.State()
	changed := false
	if trial && from == StateHalfOpen {
		b.trialInFlight = false
		b.setState(StateClosed)
		changed = true
	}
	b.mu.Unlock()

	if changed {
		b.observer.StateChanged(b.name, from, StateClosed)
	}
}

// RecordFailure counts a failure. A closed breaker opens at the threshold;
// a failed trial reopens the breaker and restarts the cooldown.
func (b *CircuitBreaker) RecordFailure(trial bool) {
	b.mu.Lock()
	now := b.now()
	b.lastFailureAt = now
	from := b.State()
	changed := false

	switch {
	case trial && from == StateHalfOpen:
		b.trialInFlight = false
		b.openedAt = now
		b.setState(StateOpen)
		changed = true
	case from == StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.openedAt = now
			b.setState(StateOpen)
			changed = true
		}
	}
	b.mu.Unlock()

	if changed {
		b.observer.StateChanged(b.name, from, StateOpen)
	}
}

// ReleaseTrial gives back an abandoned trial slot. The breaker returns to
// open with the original openedAt so the next caller can run the trial.
func (b *CircuitBreaker) ReleaseTrial() {
	b.mu.Lock()
	changed := false
	if b.State() == StateHalfOpen {
		b.trialInFlight = false
		b.setState(StateOpen)
		changed = true
	}
	b.mu.Unlock()

	if changed {
		b.observer.StateChanged(b.name, StateHalfOpen, StateOpen)
	}
}

// Status returns a snapshot of the breaker counters
func (b *CircuitBreaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:          b.name,
		State:         b.State(),
		FailureCount:  b.failureCount,
		OpenedAt:      b.openedAt,
		LastFailureAt: b.lastFailureAt,
	}
}

func (b *CircuitBreaker) setState(s State) {
	b.state.Store(int32(s))
}
