package auth

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelpay/internal/model"
	"fuelpay/internal/repository"
)

// CapabilityChecker decides whether an actor may manage payment data for an
// organization. The payment core takes this as an explicit collaborator
// instead of re-checking roles inside each service.
type CapabilityChecker interface {
	CanManagePaymentData(ctx context.Context, actorID, orgID uuid.UUID) (bool, error)
}

// RoleCapabilityChecker grants payment-data management to super-admins
// everywhere and to managers within their own organization. It reads the
// user row on every check so a revoked or deactivated account loses the
// capability immediately, not at token expiry.
type RoleCapabilityChecker struct {
	users repository.UserRepository
}

// NewRoleCapabilityChecker creates the default role-based checker.
func NewRoleCapabilityChecker(users repository.UserRepository) *RoleCapabilityChecker {
	return &RoleCapabilityChecker{users: users}
}

// CanManagePaymentData implements CapabilityChecker.
func (c *RoleCapabilityChecker) CanManagePaymentData(ctx context.Context, actorID, orgID uuid.UUID) (bool, error) {
	actor, err := c.users.FindByID(ctx, actorID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if !actor.Active {
		return false, nil
	}
	if actor.Role == model.RoleSuperAdmin {
		return true, nil
	}
	return actor.Role == model.RoleManager &&
		actor.OrganizationID != nil && *actor.OrganizationID == orgID, nil
}
