// Package circuit stops calling a managed service that keeps failing.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed lets every call through
	StateClosed State = iota
	// StateOpen rejects calls until Timeout has passed
	StateOpen
	// StateHalfOpen lets MaxRequests trial calls through
	StateHalfOpen
)

// String returns string representation of state
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

// Config contains circuit breaker configuration
type Config struct {
	// MaxRequests is the number of trial calls allowed while half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval clears the closed-state counts periodically; zero keeps them
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration `yaml:"timeout"`

	// ReadyToTrip decides, after a failure, whether to open
	ReadyToTrip func(counts Counts) bool `yaml:"-"`

	// OnStateChange is called with the lock held; it must not call back
	OnStateChange func(name string, from State, to State) `yaml:"-"`

	// IsSuccessful classifies a call outcome
	IsSuccessful func(err error) bool `yaml:"-"`
}

// DefaultConfig opens after five consecutive dependency failures and retries
// again after thirty seconds.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 5 },
	}
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker guards the calls made to one dependency.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// New creates a closed breaker. Zero fields of config take the defaults.
func New(name string, config Config) *Breaker {
	def := DefaultConfig()
	if config.MaxRequests == 0 {
		config.MaxRequests = def.MaxRequests
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = def.ReadyToTrip
	}
	if config.IsSuccessful == nil {
		config.IsSuccessful = countsAsSuccess
	}

	b := &Breaker{name: name, config: config, now: time.Now}
	b.resetExpiry(b.now())
	return b
}

// countsAsSuccess treats every error outside the dependency category as a
// healthy answer: a missing key or a rejected request means the service is up.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	e, ok := errors.As(err)
	if !ok {
		return false
	}
	return e.Category != errors.CategoryDependency
}

// Execute runs fn unless the breaker is open. Rejected calls fail with
// CIRCUIT_OPEN without reaching the dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.current(b.now())
	switch {
	case state == StateOpen:
		return errors.NewError(errors.ErrCodeCircuitOpen,
			fmt.Sprintf("%s is unavailable; calls are suspended", b.name)).WithComponent(b.name)
	case state == StateHalfOpen && b.counts.Requests >= b.config.MaxRequests:
		return errors.NewError(errors.ErrCodeCircuitOpen,
			fmt.Sprintf("%s is recovering; too many trial calls", b.name)).WithComponent(b.name)
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state := b.current(now)
	if b.config.IsSuccessful(err) {
		b.counts.onSuccess()
		if state == StateHalfOpen {
			b.setState(StateClosed, now)
		}
		return
	}

	b.counts.onFailure()
	switch state {
	case StateClosed:
		if b.config.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// must be called with lock held
func (b *Breaker) current(now time.Time) State {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts = Counts{}
			b.resetExpiry(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) resetExpiry(now time.Time) {
	b.expiry = time.Time{}
	if b.config.Interval > 0 {
		b.expiry = now.Add(b.config.Interval)
	}
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.resetExpiry(now)
	case StateOpen:
		b.expiry = now.Add(b.config.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(b.now())
}

// Counts returns a copy of the current counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Name returns the guarded dependency.
func (b *Breaker) Name() string {
	return b.name
}
