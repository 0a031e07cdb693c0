package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
)

func TestTracker_RegisterComponent(t *testing.T) {
	tracker := NewTracker(DefaultConfig())

	tracker.RegisterComponent("s3")
	tracker.RegisterComponent("s3")

	if state := tracker.GetState("s3"); state != StateHealthy {
		t.Errorf("Expected initial state to be StateHealthy, got %s", state)
	}
	if got := len(tracker.Components()); got != 1 {
		t.Errorf("Expected one component, got %d", got)
	}
	if state := tracker.GetState("unknown"); state != StateUnavailable {
		t.Errorf("Unregistered components should report unavailable, got %s", state)
	}
}

func TestTracker_Degradation(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 3
	tracker := NewTracker(config)
	tracker.RegisterComponent("metadata")

	for i := 0; i < 2; i++ {
		tracker.RecordError("metadata", fmt.Errorf("error %d", i))
	}
	if state := tracker.GetState("metadata"); state != StateHealthy {
		t.Errorf("Expected StateHealthy before threshold, got %s", state)
	}

	tracker.RecordError("metadata", fmt.Errorf("error 3"))
	if state := tracker.GetState("metadata"); state != StateDegraded {
		t.Errorf("Expected StateDegraded after threshold, got %s", state)
	}
}

func TestTracker_Unavailable(t *testing.T) {
	tracker := NewTracker(TrackerConfig{ErrorThreshold: 2, UnavailableThreshold: 4})
	tracker.RegisterComponent("compute")

	for i := 0; i < 4; i++ {
		tracker.RecordError("compute", fmt.Errorf("error %d", i))
	}

	if state := tracker.GetState("compute"); state != StateUnavailable {
		t.Errorf("Expected StateUnavailable, got %s", state)
	}
	if tracker.GetOverallHealth() != StateUnavailable {
		t.Error("Overall health should reflect the worst component")
	}
}

func TestTracker_ThrottlingDegradesImmediately(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	tracker.RegisterComponent("s3")

	tracker.RecordError("s3", errors.NewError(errors.ErrCodeDependencyThrottled, "SlowDown"))

	if state := tracker.GetState("s3"); state != StateDegraded {
		t.Errorf("Expected StateDegraded after throttling, got %s", state)
	}
	if c := tracker.Components()[0]; c.Throttled != 1 {
		t.Errorf("Throttled = %d, want 1", c.Throttled)
	}
}

func TestTracker_Recovery(t *testing.T) {
	tracker := NewTracker(TrackerConfig{ErrorThreshold: 1, UnavailableThreshold: 5})
	tracker.RegisterComponent("inventory")

	tracker.RecordError("inventory", fmt.Errorf("locked"))
	if tracker.IsHealthy("inventory") {
		t.Fatal("Expected degraded state")
	}

	tracker.RecordSuccess("inventory")
	if !tracker.IsHealthy("inventory") {
		t.Error("A success should restore health")
	}
	if c := tracker.Components()[0]; c.LastErrorMessage != "" || c.ConsecutiveErrors != 0 {
		t.Errorf("Recovery should clear the error streak, got %+v", c)
	}
}

func TestTracker_ObserveIgnoresNotFound(t *testing.T) {
	tracker := NewTracker(TrackerConfig{ErrorThreshold: 1, UnavailableThreshold: 2})
	tracker.RegisterComponent("s3")

	tracker.Observe("s3", errors.NotFound(errors.ErrCodeObjectNotFound, "missing"))
	if !tracker.IsHealthy("s3") {
		t.Error("Lookups that miss are not dependency failures")
	}

	tracker.Observe("s3", fmt.Errorf("connection reset"))
	if tracker.IsHealthy("s3") {
		t.Error("Expected a real failure to degrade the component")
	}
}

func TestTracker_NilIsSafe(t *testing.T) {
	var tracker *Tracker
	tracker.RegisterComponent("s3")
	tracker.RecordError("s3", fmt.Errorf("boom"))
	tracker.RecordSuccess("s3")
}

func TestTracker_StartHealthChecks(t *testing.T) {
	tracker := NewTracker(TrackerConfig{ErrorThreshold: 1, UnavailableThreshold: 3, CheckInterval: 5 * time.Millisecond})
	tracker.RegisterComponent("compute")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	tracker.StartHealthChecks(ctx, map[string]CheckFunc{
		"compute": func(ctx context.Context) error { return fmt.Errorf("down") },
	})

	if state := tracker.GetState("compute"); state == StateHealthy {
		t.Errorf("Expected failing checks to degrade the component, got %s", state)
	}
}

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state HealthState
		want  string
	}{
		{StateHealthy, "healthy"},
		{StateDegraded, "degraded"},
		{StateUnavailable, "unavailable"},
		{HealthState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
