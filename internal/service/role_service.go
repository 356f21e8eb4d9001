package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type roleRequestRepository interface {
	List(ctx context.Context, filter models.RoleRequestFilter) ([]models.RoleRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.RoleRequest, error)
	ExistsPending(ctx context.Context, userID string, role models.Role) (bool, error)
	Create(ctx context.Context, request *models.RoleRequest) error
	Decide(ctx context.Context, id string, status models.RoleRequestStatus, decidedBy string, decidedAt time.Time) error
}

type roleUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Roles(ctx context.Context, userID string) (models.RoleSet, error)
	GrantRole(ctx context.Context, userID string, role models.Role) error
	RevokeRole(ctx context.Context, userID string, role models.Role) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// RoleService manages self-service role requests and direct role grants.
// Approval authority is tiered: admins decide teacher requests, only
// directors decide admin requests or touch roles directly.
type RoleService struct {
	requests  roleRequestRepository
	users     roleUserRepository
	notifier  notifier
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoleService constructs the service.
func NewRoleService(requests roleRequestRepository, users roleUserRepository, notifier notifier, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *RoleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		requests:  requests,
		users:     users,
		notifier:  notifier,
		audits:    audits,
		validator: validate,
		logger:    logger,
	}
}

// SubmitRoleRequest describes a self-service role request payload.
type SubmitRoleRequest struct {
	Role   string `json:"role" validate:"required"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

// RoleRequestListRequest describes filters for listing role requests.
type RoleRequestListRequest struct {
	UserID   string
	Status   string
	Page     int
	PageSize int
}

// UserListRequest describes filters for listing users.
type UserListRequest struct {
	Role      string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Request submits a role request. Only teacher and admin roles can be
// requested, and a duplicate pending request is rejected.
func (s *RoleService) Request(ctx context.Context, userID string, req SubmitRoleRequest) (*models.RoleRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	role := models.Role(req.Role)
	if role != models.RoleTeacher && role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only TEACHER and ADMIN roles can be requested")
	}

	held, err := s.users.Roles(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	if held.Has(role) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already hold this role")
	}

	pending, err := s.requests.ExistsPending(ctx, userID, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a request for this role is already pending")
	}

	request := &models.RoleRequest{
		UserID:      userID,
		Role:        role,
		Reason:      req.Reason,
		Status:      models.RoleRequestStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create role request")
	}

	s.audit(ctx, userID, models.AuditActionRoleRequest, "role_request", request.ID, "requested role "+string(role))
	if s.notifier != nil {
		s.notifier.NotifyRole(ctx, models.RoleAdmin, models.NotificationRoleRequestSubmitted,
			"New role request", string(role), map[string]string{"request_id": request.ID})
	}
	return request, nil
}

// List returns role requests with pagination.
func (s *RoleService) List(ctx context.Context, req RoleRequestListRequest) ([]models.RoleRequest, *models.Pagination, error) {
	filter := models.RoleRequestFilter{
		UserID:   req.UserID,
		Status:   models.RoleRequestStatus(req.Status),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Decide approves or rejects a pending role request. Approving grants the
// role; the requester is notified either way.
func (s *RoleService) Decide(ctx context.Context, actorID string, actorRoles models.RoleSet, requestID string, approve bool) (*models.RoleRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "role request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role request")
	}
	if request.Status != models.RoleRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "role request was already decided")
	}

	switch request.Role {
	case models.RoleAdmin:
		if !authz.CanAssignRoles(actorRoles) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the director can decide admin requests")
		}
	default:
		if !authz.CanAssignTeacherOrAdmin(actorRoles) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot decide role requests")
		}
	}

	status := models.RoleRequestStatusApproved
	kind := models.NotificationRoleApproved
	title := "Role request approved"
	if !approve {
		status = models.RoleRequestStatusRejected
		kind = models.NotificationRoleRejected
		title = "Role request rejected"
	}

	decidedAt := time.Now().UTC()
	if err := s.requests.Decide(ctx, requestID, status, actorID, decidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "role request was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide role request")
	}
	request.Status = status
	request.DecidedBy = &actorID
	request.DecidedAt = &decidedAt

	if approve {
		if err := s.users.GrantRole(ctx, request.UserID, request.Role); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant role")
		}
	}

	action := models.AuditActionRoleGrant
	if !approve {
		action = models.AuditActionRoleRequest
	}
	s.audit(ctx, actorID, action, "role_request", request.ID, "role request "+string(status))
	if s.notifier != nil {
		s.notifier.NotifyUsers(ctx, []string{request.UserID}, kind, title, string(request.Role),
			map[string]string{"request_id": request.ID})
	}
	return request, nil
}

// Grant adds a role to a user directly. Director only.
func (s *RoleService) Grant(ctx context.Context, actorID string, actorRoles models.RoleSet, userID string, role models.Role) error {
	if !authz.CanAssignRoles(actorRoles) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the director can assign roles")
	}
	if !models.ValidRole(role) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.users.GrantRole(ctx, userID, role); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant role")
	}
	s.audit(ctx, actorID, models.AuditActionRoleGrant, "user", userID, "granted role "+string(role))
	return nil
}

// Revoke removes a role from a user. Director only.
func (s *RoleService) Revoke(ctx context.Context, actorID string, actorRoles models.RoleSet, userID string, role models.Role) error {
	if !authz.CanAssignRoles(actorRoles) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the director can revoke roles")
	}
	if !models.ValidRole(role) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if err := s.users.RevokeRole(ctx, userID, role); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke role")
	}
	s.audit(ctx, actorID, models.AuditActionRoleRevoke, "user", userID, "revoked role "+string(role))
	return nil
}

// ListUsers returns users with their filters applied, for the admin panel.
func (s *RoleService) ListUsers(ctx context.Context, req UserListRequest) ([]models.User, *models.Pagination, error) {
	filter := models.UserFilter{
		Active:    req.Active,
		Search:    req.Search,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Role != "" {
		role := models.Role(req.Role)
		if !models.ValidRole(role) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		}
		filter.Role = &role
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// UserRoles returns the durable role set of one user.
func (s *RoleService) UserRoles(ctx context.Context, userID string) (models.RoleSet, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	roles, err := s.users.Roles(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	return roles, nil
}

func (s *RoleService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
	if s.audits == nil {
		return
	}
	log := &models.AuditLog{
		ActorID:     &actorID,
		Action:      action,
		Resource:    resource,
		ResourceID:  &resourceID,
		Description: description,
	}
	if err := s.audits.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err), zap.String("action", action))
	}
}
