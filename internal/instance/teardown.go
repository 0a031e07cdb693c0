package instance

import (
	"context"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// Delete terminates an instance and tears down everything registered with
// it. Only a failed terminate fails the call; every later step is attempted
// regardless and reported in Steps.
func (o *Orchestrator) Delete(ctx context.Context, claims *types.Claims, req TargetRequest) (*ActionResult, error) {
	ownerID, err := manager(claims)
	if err != nil {
		return nil, err
	}
	inst, err := o.inventory.GetInstance(ctx, ownerID, req.InstanceID)
	if err != nil {
		return nil, err
	}
	id, region := inst.InstanceID, inst.Region

	if err := o.compute.TerminateInstance(ctx, region, id); err != nil && !errors.HasCode(err, errors.ErrCodeInstanceNotFound) {
		o.logger.Error("Terminate failed", "instance", id, "error", err)
		return nil, err
	}
	o.logger.Info("Instance terminated", "instance", id, "owner", ownerID)

	ctx = context.WithoutCancel(ctx)
	var steps types.BatchResult
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			o.logger.Warn("Teardown step failed", "instance", id, "step", name, "error", err)
			steps.Fail(name, err)
			return
		}
		steps.Ok(name)
	}

	step("update-status", func() error {
		return o.inventory.PutStatus(ctx, &types.StatusRecord{
			InstanceID: id, UserID: ownerID, Status: types.InstanceTerminated, UpdatedAt: o.now(),
		})
	})
	step("update-tracking", func() error {
		return o.track(ctx, inst, types.InstanceTerminated)
	})
	step("decrement-subnet", func() error {
		return o.inventory.AdjustSubnet(ctx, region, inst.SubnetID, -1)
	})
	step("delete-key-pair", func() error {
		km, err := o.inventory.GetKeyMaterial(ctx, id)
		if errors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := o.compute.DeleteKeyPair(ctx, region, km.KeyName); err != nil {
			return err
		}
		return o.inventory.DeleteKeyMaterial(ctx, id)
	})
	step("remove-ip-record", func() error {
		return o.inventory.DeleteIPRecord(ctx, id)
	})
	step("delete-sessions", func() error {
		n, err := o.inventory.DeleteSessions(ctx, ownerID, id)
		if err == nil && n > 0 {
			o.logger.Info("Sessions removed", "instance", id, "count", n)
		}
		return err
	})
	step("delete-user-data", func() error {
		return o.inventory.DeleteInstance(ctx, ownerID, id)
	})
	step("delete-assignment", func() error {
		return o.inventory.DeleteAssignment(ctx, ownerID, id)
	})
	step("delete-idle-setting", func() error {
		return o.inventory.DeleteIdleSetting(ctx, id)
	})
	step("decrement-quota", func() error {
		return o.inventory.AdjustQuotaUsage(ctx, ownerID, -1)
	})

	return &ActionResult{
		Message:    "Instance deleted successfully",
		InstanceID: id,
		Status:     types.InstanceTerminated,
		Steps:      steps.Items,
	}, nil
}
