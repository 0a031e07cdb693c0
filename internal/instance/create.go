package instance

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// keyPairName builds smartpc-{owner}-{8 hex chars}.
func keyPairName(ownerID string) string {
	return fmt.Sprintf("smartpc-%s-%s", ownerID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Create provisions an instance for the resolved owner. Checks run before
// anything is launched; once the provider has launched the instance, any
// failure rolls back every completed step in reverse order.
func (o *Orchestrator) Create(ctx context.Context, claims *types.Claims, req CreateRequest) (*CreateResult, error) {
	ownerID, err := manager(claims)
	if err != nil {
		return nil, err
	}
	if req.Region == "" || req.ConfigID == "" || req.AmiID == "" || req.SystemName == "" {
		return nil, errors.Validation("region, configId, amiId, and systemName are required.")
	}

	quota, err := o.inventory.GetQuota(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if quota.UsedCount >= quota.Quota {
		return nil, errors.NewError(errors.ErrCodeQuotaExceeded,
			fmt.Sprintf("Instance quota exceeded (%d of %d in use)", quota.UsedCount, quota.Quota))
	}

	exists, err := o.inventory.SystemNameExists(ctx, ownerID, req.SystemName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewError(errors.ErrCodeDuplicateName,
			fmt.Sprintf("System name %q is already in use", req.SystemName))
	}

	subnets, err := o.inventory.ListSubnets(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	if len(subnets) == 0 {
		return nil, errors.NotFound(errors.ErrCodeSubnetNotFound, fmt.Sprintf("No subnet available in region %s", req.Region))
	}
	subnet := subnets[0]

	if !o.policy.AllowsStorage(req.ConfigID, req.StorageSize) {
		return nil, errors.NewError(errors.ErrCodeInvalidConfiguration,
			fmt.Sprintf("Storage size %d is not offered for configuration %s", req.StorageSize, req.ConfigID))
	}
	instanceType := req.InstanceType
	if instanceType == "" {
		instanceType = o.policy.DefaultInstanceType
	}
	if !o.policy.AllowsInstanceType(instanceType) {
		return nil, errors.NewError(errors.ErrCodeInvalidConfiguration,
			fmt.Sprintf("Instance type %s is not supported", instanceType))
	}

	launched, err := o.compute.RunInstance(ctx, req.Region, types.LaunchSpec{
		AmiID:        req.AmiID,
		InstanceType: instanceType,
		SubnetID:     subnet.SubnetID,
		StorageSize:  req.StorageSize,
		Name:         req.SystemName,
		OwnerID:      ownerID,
	})
	if err != nil {
		o.logger.Error("Instance launch failed", "owner", ownerID, "system", req.SystemName, "error", err)
		return nil, err
	}
	id := launched.InstanceID
	o.logger.Info("Instance launched", "instance", id, "owner", ownerID, "subnet", subnet.SubnetID)

	undo := &compensator{recorder: o.rollbacks, logger: o.logger.With("instance", id)}
	undo.push("terminate-instance", func(ctx context.Context) error {
		return o.compute.TerminateInstance(ctx, req.Region, id)
	})

	result, err := o.register(ctx, undo, ownerID, instanceType, subnet.SubnetID, req, launched)
	if err != nil {
		failed := undo.run(ctx)
		o.logger.Error("Instance creation rolled back", "instance", id, "error", err, "failed_steps", failed)
		return nil, err
	}
	return result, nil
}

// register persists everything that belongs to a launched instance, pushing
// a compensation for each step that succeeds.
func (o *Orchestrator) register(ctx context.Context, undo *compensator, ownerID, instanceType, subnetID string, req CreateRequest, launched *types.LaunchResult) (*CreateResult, error) {
	id := launched.InstanceID
	now := o.now()

	key, err := o.compute.CreateKeyPair(ctx, req.Region, keyPairName(ownerID))
	if err != nil {
		return nil, err
	}
	undo.push("delete-key-pair", func(ctx context.Context) error {
		if err := o.compute.DeleteKeyPair(ctx, req.Region, key.Name); err != nil {
			return err
		}
		return o.inventory.DeleteKeyMaterial(ctx, id)
	})
	if err := o.inventory.PutKeyMaterial(ctx, &types.KeyMaterial{
		InstanceID: id, UserID: ownerID, KeyName: key.Name, PrivateKey: key.PrivateKey, CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := o.inventory.PutIPRecord(ctx, &types.IPRecord{
		InstanceID: id, UserID: ownerID, PrivateIP: launched.PrivateIP, PublicIP: launched.PublicIP, CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	undo.push("remove-ip-record", func(ctx context.Context) error {
		return o.inventory.DeleteIPRecord(ctx, id)
	})

	inst := &types.Instance{
		InstanceID:   id,
		UserID:       ownerID,
		SystemName:   req.SystemName,
		SubnetID:     subnetID,
		Region:       req.Region,
		ConfigID:     req.ConfigID,
		AmiID:        req.AmiID,
		InstanceType: instanceType,
		StorageSize:  req.StorageSize,
		Status:       types.InstanceRunning,
		PrivateIP:    launched.PrivateIP,
		PublicIP:     launched.PublicIP,
		CreatedAt:    now,
	}
	if err := o.inventory.PutInstance(ctx, inst); err != nil {
		return nil, err
	}
	undo.push("remove-instance-record", func(ctx context.Context) error {
		if err := o.inventory.DeleteStatus(ctx, id); err != nil {
			return err
		}
		return o.inventory.DeleteInstance(ctx, ownerID, id)
	})
	if err := o.inventory.PutStatus(ctx, &types.StatusRecord{
		InstanceID: id, UserID: ownerID, Status: types.InstanceRunning, UpdatedAt: now,
	}); err != nil {
		return nil, err
	}

	keyEntry := func(status string) *types.TrackingEntry {
		return &types.TrackingEntry{
			ResourceID:   key.Name,
			ResourceType: types.ResourceKeyPair,
			EntryID:      uuid.NewString(),
			UserID:       ownerID,
			Status:       status,
			Region:       req.Region,
			SubnetID:     subnetID,
			ConfigID:     req.ConfigID,
			UpdatedAt:    o.now(),
		}
	}
	if err := o.track(ctx, inst, types.InstanceRunning); err != nil {
		return nil, err
	}
	// The ledger outlives the rollback, so it must end up describing
	// terminated resources rather than being deleted.
	undo.push("retire-tracking", func(ctx context.Context) error {
		if err := o.track(ctx, inst, types.InstanceTerminated); err != nil {
			return err
		}
		return o.inventory.UpsertTracking(ctx, keyEntry(types.InstanceTerminated))
	})
	if err := o.inventory.UpsertTracking(ctx, keyEntry("active")); err != nil {
		return nil, err
	}

	if err := o.inventory.AdjustSubnet(ctx, req.Region, subnetID, 1); err != nil {
		return nil, err
	}
	undo.push("decrement-subnet", func(ctx context.Context) error {
		return o.inventory.AdjustSubnet(ctx, req.Region, subnetID, -1)
	})

	if err := o.inventory.AdjustQuotaUsage(ctx, ownerID, 1); err != nil {
		return nil, err
	}
	undo.push("decrement-quota", func(ctx context.Context) error {
		return o.inventory.AdjustQuotaUsage(ctx, ownerID, -1)
	})

	if err := o.inventory.PutIdleSetting(ctx, &types.IdleSetting{
		InstanceID: id, UserID: ownerID, TimeoutMinutes: o.policy.IdleTimeoutMinutes,
	}); err != nil {
		return nil, err
	}

	o.logger.Info("Instance registered", "instance", id, "owner", ownerID, "key_pair", key.Name)
	return &CreateResult{
		Message:    "Instance created successfully",
		InstanceID: id,
		SystemName: req.SystemName,
		KeyName:    key.Name,
		SubnetID:   subnetID,
		PrivateIP:  launched.PrivateIP,
		Status:     types.InstanceRunning,
	}, nil
}

// track overwrites the ledger row of inst with its full association.
func (o *Orchestrator) track(ctx context.Context, inst *types.Instance, status string) error {
	return o.inventory.UpsertTracking(ctx, &types.TrackingEntry{
		ResourceID:   inst.InstanceID,
		ResourceType: types.ResourceInstance,
		EntryID:      uuid.NewString(),
		UserID:       inst.UserID,
		Status:       status,
		Region:       inst.Region,
		SubnetID:     inst.SubnetID,
		ConfigID:     inst.ConfigID,
		StorageSize:  inst.StorageSize,
		UpdatedAt:    o.now(),
	})
}
