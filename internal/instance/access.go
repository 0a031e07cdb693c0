package instance

import (
	"context"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// owner resolves whose instances the caller acts on. Admins act for the
// owner named in their token; everyone else acts for themselves.
func owner(claims *types.Claims) (string, error) {
	if claims == nil {
		return "", errors.NewError(errors.ErrCodeAuthenticationFailed, "Missing identity token")
	}
	if claims.Role == types.RoleAdmin {
		if claims.OwnerID == "" {
			return "", errors.NewError(errors.ErrCodeOwnerRequired, "Admin token is missing the ownerid claim")
		}
		return claims.OwnerID, nil
	}
	return claims.Subject, nil
}

// manager resolves the owner for create and delete, which members may not call.
func manager(claims *types.Claims) (string, error) {
	if claims != nil && claims.Role == types.RoleMember {
		return "", errors.NewError(errors.ErrCodeRoleForbidden, "Members cannot create or delete instances")
	}
	return owner(claims)
}

// operator resolves the instance a power action targets and applies the
// assignment gate. A nil claims value is a system call (scheduler or idle
// monitor) and skips the gate.
func (o *Orchestrator) operator(ctx context.Context, claims *types.Claims, instanceID string) (*types.Instance, error) {
	if claims == nil {
		return o.inventory.FindInstance(ctx, instanceID)
	}

	ownerID := claims.Subject
	switch claims.Role {
	case types.RoleAdmin:
		if claims.OwnerID == "" {
			return nil, errors.NewError(errors.ErrCodeOwnerRequired, "Admin token is missing the ownerid claim")
		}
		ownerID = claims.OwnerID
	case types.RoleMember:
		ownerID = claims.OwnerID
		if ownerID == "" {
			inst, err := o.inventory.FindInstance(ctx, instanceID)
			if err != nil {
				return nil, err
			}
			ownerID = inst.UserID
		}
	}

	inst, err := o.inventory.GetInstance(ctx, ownerID, instanceID)
	if err != nil {
		return nil, err
	}

	assignment, err := o.inventory.GetAssignment(ctx, ownerID, instanceID)
	switch {
	case errors.IsNotFound(err):
		if claims.Role == types.RoleMember {
			return nil, errors.NewError(errors.ErrCodeAssignmentMismatch, "Instance is not assigned to you")
		}
	case err != nil:
		return nil, err
	case assignment.MemberID != claims.Subject:
		return nil, errors.NewError(errors.ErrCodeAssignmentMismatch, "Instance is assigned to another member")
	}
	return inst, nil
}
