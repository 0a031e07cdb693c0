package instance

import (
	"context"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// CheckStatus reads the provider's view of an instance without writing
// anything. A missing instance is reported, not treated as an error.
func (o *Orchestrator) CheckStatus(ctx context.Context, req TargetRequest) (*StatusResult, error) {
	if req.InstanceID == "" {
		return nil, errors.Validation("instanceId is required.")
	}

	region := req.Region
	if region == "" {
		inst, err := o.inventory.FindInstance(ctx, req.InstanceID)
		switch {
		case err == nil:
			region = inst.Region
		case !errors.IsNotFound(err):
			return nil, err
		}
	}
	if region == "" {
		region = o.policy.DefaultRegion
	}

	state, err := o.compute.DescribeInstance(ctx, region, req.InstanceID)
	if errors.IsNotFound(err) {
		return &StatusResult{
			InstanceID: req.InstanceID,
			Status:     types.InstanceNotFound,
			Message:    "Instance not found or terminated",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &StatusResult{InstanceID: req.InstanceID, Status: state.DisplayState()}, nil
}

// List returns the instances visible to the caller with their live state.
// Members see only the owner's instances assigned to them. Instances the
// provider no longer knows are left out; changed states are written back to
// the user-data mirror.
func (o *Orchestrator) List(ctx context.Context, claims *types.Claims) ([]View, error) {
	if claims == nil {
		return nil, errors.NewError(errors.ErrCodeAuthenticationFailed, "Missing identity token")
	}

	ownerID := claims.Subject
	var visible map[string]bool
	switch claims.Role {
	case types.RoleAdmin:
		if claims.OwnerID != "" {
			ownerID = claims.OwnerID
		}
	case types.RoleMember:
		if claims.OwnerID == "" {
			return []View{}, nil
		}
		ownerID = claims.OwnerID
		assignments, err := o.inventory.ListAssignments(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		visible = make(map[string]bool, len(assignments))
		for _, a := range assignments {
			if a.MemberID == claims.Subject {
				visible[a.InstanceID] = true
			}
		}
	}

	instances, err := o.inventory.ListInstances(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(instances))
	for _, inst := range instances {
		if visible != nil && !visible[inst.InstanceID] {
			continue
		}
		state, err := o.compute.DescribeInstance(ctx, inst.Region, inst.InstanceID)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		display := state.DisplayState()
		if display != inst.Status {
			if err := o.inventory.UpdateInstanceStatus(ctx, inst.UserID, inst.InstanceID, display); err != nil {
				o.logger.Warn("Failed to refresh instance status", "instance", inst.InstanceID, "error", err)
			}
			inst.Status = display
		}

		view := View{Instance: inst, State: display, InstanceType: state.InstanceType}
		if !state.LaunchTime.IsZero() {
			view.LaunchTime = types.Timestamp(state.LaunchTime)
		}
		if state.PublicIP != "" {
			view.PublicIP = state.PublicIP
		}
		if state.PrivateIP != "" {
			view.PrivateIP = state.PrivateIP
		}
		views = append(views, view)
	}
	return views, nil
}
