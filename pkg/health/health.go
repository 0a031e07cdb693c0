// Package health tracks the health of the managed services SmartPC depends on
// (object storage, the metadata table, the inventory database and compute).
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
)

// HealthState represents the health state of a dependency
type HealthState int

const (
	// StateHealthy indicates the dependency answers normally
	StateHealthy HealthState = iota

	// StateDegraded indicates repeated failures or throttling
	StateDegraded

	// StateUnavailable indicates the dependency has stopped answering
	StateUnavailable
)

// String returns the string representation of a health state
func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON output.
func (s HealthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ComponentHealth is the tracked view of one dependency.
type ComponentHealth struct {
	Name              string      `json:"name"`
	State             HealthState `json:"state"`
	LastStateChange   time.Time   `json:"last_state_change"`
	LastCheck         time.Time   `json:"last_check"`
	ConsecutiveErrors int         `json:"consecutive_errors"`
	Throttled         int         `json:"throttled"`
	LastErrorMessage  string      `json:"last_error_message,omitempty"`
}

// TrackerConfig configures health tracking behavior
type TrackerConfig struct {
	// ErrorThreshold is the number of consecutive errors before marking a component degraded
	ErrorThreshold int `yaml:"error_threshold" json:"error_threshold" validate:"gte=1"`

	// UnavailableThreshold is the number of consecutive errors before marking unavailable
	UnavailableThreshold int `yaml:"unavailable_threshold" json:"unavailable_threshold" validate:"gtefield=ErrorThreshold"`

	// CheckInterval is the interval for background checks
	CheckInterval time.Duration `yaml:"check_interval" json:"check_interval"`
}

// DefaultConfig returns a default tracker configuration
func DefaultConfig() TrackerConfig {
	return TrackerConfig{
		ErrorThreshold:       3,
		UnavailableThreshold: 10,
		CheckInterval:        30 * time.Second,
	}
}

// Tracker tracks the health of registered dependencies.
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	config     TrackerConfig
}

// NewTracker creates a new health tracker
func NewTracker(config TrackerConfig) *Tracker {
	if config.ErrorThreshold <= 0 {
		config.ErrorThreshold = 3
	}
	if config.UnavailableThreshold < config.ErrorThreshold {
		config.UnavailableThreshold = config.ErrorThreshold
	}
	return &Tracker{
		components: make(map[string]*ComponentHealth),
		config:     config,
	}
}

// RegisterComponent registers a dependency. Registering twice is a no-op.
func (t *Tracker) RegisterComponent(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.components[name]; !exists {
		now := time.Now()
		t.components[name] = &ComponentHealth{
			Name:            name,
			State:           StateHealthy,
			LastStateChange: now,
			LastCheck:       now,
		}
	}
}

// Observe records the outcome of one call to a dependency.
func (t *Tracker) Observe(component string, err error) {
	if err != nil && !errors.IsNotFound(err) {
		t.RecordError(component, err)
		return
	}
	t.RecordSuccess(component)
}

// RecordSuccess records a successful call. A single success clears the error streak.
func (t *Tracker) RecordSuccess(component string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.components[component]
	if !exists {
		return
	}

	h.LastCheck = time.Now()
	h.ConsecutiveErrors = 0
	if h.State != StateHealthy {
		t.transition(h, StateHealthy)
		h.LastErrorMessage = ""
	}
}

// RecordError records a failed call.
func (t *Tracker) RecordError(component string, err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.components[component]
	if !exists {
		return
	}

	h.LastCheck = time.Now()
	h.ConsecutiveErrors++
	if err != nil {
		h.LastErrorMessage = err.Error()
	}
	throttled := errors.HasCode(err, errors.ErrCodeDependencyThrottled)
	if throttled {
		h.Throttled++
	}

	newState := h.State
	switch {
	case h.ConsecutiveErrors >= t.config.UnavailableThreshold:
		newState = StateUnavailable
	case h.ConsecutiveErrors >= t.config.ErrorThreshold, throttled:
		newState = StateDegraded
	}

	if newState != h.State {
		t.transition(h, newState)
	}
}

// GetState returns the current health state of a component
func (t *Tracker) GetState(component string) HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if h, exists := t.components[component]; exists {
		return h.State
	}
	return StateUnavailable
}

// Components returns a copy of every tracked dependency ordered by name.
func (t *Tracker) Components() []ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ComponentHealth, 0, len(t.components))
	for _, h := range t.components {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetOverallHealth returns the worst state among all components.
func (t *Tracker) GetOverallHealth() HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	overall := StateHealthy
	for _, h := range t.components {
		if h.State > overall {
			overall = h.State
		}
	}
	return overall
}

// IsHealthy returns true if the component is in a healthy state
func (t *Tracker) IsHealthy(component string) bool {
	return t.GetState(component) == StateHealthy
}

// must be called with lock held
func (t *Tracker) transition(h *ComponentHealth, newState HealthState) {
	h.State = newState
	h.LastStateChange = time.Now()
}

// CheckFunc is a cheap liveness call against one dependency.
type CheckFunc func(ctx context.Context) error

// StartHealthChecks runs checks every CheckInterval until ctx is done.
func (t *Tracker) StartHealthChecks(ctx context.Context, checks map[string]CheckFunc) {
	if t.config.CheckInterval <= 0 || len(checks) == 0 {
		return
	}
	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runChecks(ctx, checks)
		}
	}
}

func (t *Tracker) runChecks(ctx context.Context, checks map[string]CheckFunc) {
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		t.Observe(name, check(checkCtx))
		cancel()
	}
}
