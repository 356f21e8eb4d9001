package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type activeRoleUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Roles(ctx context.Context, userID string) (models.RoleSet, error)
}

// ActiveRoleService resolves the transient viewing lens against the durable
// role set. The lens frames the UI only; it never widens access, so every
// resolution re-reads roles from the store.
type ActiveRoleService struct {
	repo   activeRoleUserRepository
	logger *zap.Logger
}

// NewActiveRoleService constructs the service.
func NewActiveRoleService(repo activeRoleUserRepository, logger *zap.Logger) *ActiveRoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActiveRoleService{repo: repo, logger: logger}
}

// ActiveRoleState is the resolved lens plus everything the user could switch
// to, returned to the client alongside profile data.
type ActiveRoleState struct {
	ActiveRole models.ActiveRole   `json:"active_role"`
	Available  []models.ActiveRole `json:"available_roles"`
	Roles      models.RoleSet      `json:"roles"`
}

// Resolve reconciles the cookie value with the durable role set. An invalid
// or stale cookie value is silently replaced by the best available lens.
func (s *ActiveRoleService) Resolve(ctx context.Context, userID string, previous models.ActiveRole) (*ActiveRoleState, error) {
	roles, err := s.loadRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ActiveRoleState{
		ActiveRole: authz.ResolveActiveRole(roles, "", previous),
		Available:  authz.AvailableActiveRoles(roles),
		Roles:      roles,
	}, nil
}

// Select validates an explicit lens switch. A lens not backed by a held role
// is rejected before anything is persisted.
func (s *ActiveRoleService) Select(ctx context.Context, userID string, requested models.ActiveRole) (*ActiveRoleState, error) {
	if !models.ValidActiveRole(requested) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown active role")
	}
	roles, err := s.loadRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !authz.HoldsActiveRole(roles, requested) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "active role is not available to this user")
	}
	return &ActiveRoleState{
		ActiveRole: requested,
		Available:  authz.AvailableActiveRoles(roles),
		Roles:      roles,
	}, nil
}

func (s *ActiveRoleService) loadRoles(ctx context.Context, userID string) (models.RoleSet, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	roles, err := s.repo.Roles(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	return roles, nil
}
