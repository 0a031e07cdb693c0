package instance

import (
	"log/slog"
	"time"

	"github.com/smartpc/smartpc/internal/config"
	"github.com/smartpc/smartpc/pkg/types"
)

// Policy is the provisioning policy applied by create: the compute section
// of the configuration plus the region checkStatus falls back to.
type Policy struct {
	config.ComputeConfig

	DefaultRegion string
}

// RollbackRecorder counts compensating steps.
type RollbackRecorder interface {
	RecordRollbackStep(step string, success bool)
}

// Orchestrator drives the instance lifecycle across the compute provider and
// the inventory.
type Orchestrator struct {
	compute   types.Compute
	inventory types.Inventory
	policy    Policy
	rollbacks RollbackRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the orchestrator. rollbacks and logger may be nil.
func NewOrchestrator(compute types.Compute, inventory types.Inventory, policy Policy, rollbacks RollbackRecorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.IdleTimeoutMinutes <= 0 {
		policy.IdleTimeoutMinutes = 30
	}
	return &Orchestrator{
		compute:   compute,
		inventory: inventory,
		policy:    policy,
		rollbacks: rollbacks,
		logger:    logger.With("component", "instance"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}
