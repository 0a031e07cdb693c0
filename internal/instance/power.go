package instance

import (
	"context"

	"github.com/smartpc/smartpc/pkg/types"
)

// Start powers an instance on. See transition for the gate and bookkeeping.
func (o *Orchestrator) Start(ctx context.Context, claims *types.Claims, req TargetRequest) (*ActionResult, error) {
	return o.transition(ctx, claims, req, types.InstanceRunning)
}

// Stop powers an instance off.
func (o *Orchestrator) Stop(ctx context.Context, claims *types.Claims, req TargetRequest) (*ActionResult, error) {
	return o.transition(ctx, claims, req, types.InstanceStopped)
}

// transition triggers the provider action and returns without waiting for
// the instance to reach the target state. The user-data mirror, the live
// status row and the full tracking record are refreshed afterwards.
func (o *Orchestrator) transition(ctx context.Context, claims *types.Claims, req TargetRequest, target string) (*ActionResult, error) {
	inst, err := o.operator(ctx, claims, req.InstanceID)
	if err != nil {
		return nil, err
	}
	region := inst.Region
	if region == "" {
		region = req.Region
	}

	verb := "started"
	if target == types.InstanceRunning {
		err = o.compute.StartInstance(ctx, region, inst.InstanceID)
	} else {
		verb = "stopped"
		err = o.compute.StopInstance(ctx, region, inst.InstanceID)
	}
	if err != nil {
		o.logger.Error("Power transition failed", "instance", inst.InstanceID, "target", target, "error", err)
		return nil, err
	}
	o.logger.Info("Instance state change", "instance", inst.InstanceID, "from", inst.Status, "to", target)

	inst.Status = target
	if err := o.inventory.UpdateInstanceStatus(ctx, inst.UserID, inst.InstanceID, target); err != nil {
		return nil, err
	}
	if err := o.inventory.PutStatus(ctx, &types.StatusRecord{
		InstanceID: inst.InstanceID, UserID: inst.UserID, Status: target, UpdatedAt: o.now(),
	}); err != nil {
		return nil, err
	}
	if err := o.track(ctx, inst, target); err != nil {
		return nil, err
	}

	return &ActionResult{
		Message:    "Instance " + verb + " successfully",
		InstanceID: inst.InstanceID,
		Status:     target,
	}, nil
}
