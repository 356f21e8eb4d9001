package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type mockRoleRequestRepo struct {
	requests map[string]models.RoleRequest
	created  int
}

func (m *mockRoleRequestRepo) List(ctx context.Context, filter models.RoleRequestFilter) ([]models.RoleRequest, int, error) {
	var list []models.RoleRequest
	for _, r := range m.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		list = append(list, r)
	}
	return list, len(list), nil
}

func (m *mockRoleRequestRepo) FindByID(ctx context.Context, id string) (*models.RoleRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoleRequestRepo) ExistsPending(ctx context.Context, userID string, role models.Role) (bool, error) {
	for _, r := range m.requests {
		if r.UserID == userID && r.Role == role && r.Status == models.RoleRequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoleRequestRepo) Create(ctx context.Context, request *models.RoleRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.RoleRequest)
	}
	if request.ID == "" {
		request.ID = "rr-new"
	}
	m.requests[request.ID] = *request
	m.created++
	return nil
}

func (m *mockRoleRequestRepo) Decide(ctx context.Context, id string, status models.RoleRequestStatus, decidedBy string, decidedAt time.Time) error {
	r, ok := m.requests[id]
	if !ok || r.Status != models.RoleRequestStatusPending {
		return sql.ErrNoRows
	}
	r.Status = status
	r.DecidedBy = &decidedBy
	r.DecidedAt = &decidedAt
	m.requests[id] = r
	return nil
}

type mockRoleUserRepo struct {
	users   map[string]models.User
	roles   map[string]models.RoleSet
	granted []string
	revoked []string
}

func (m *mockRoleUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoleUserRepo) Roles(ctx context.Context, userID string) (models.RoleSet, error) {
	return m.roles[userID], nil
}

func (m *mockRoleUserRepo) GrantRole(ctx context.Context, userID string, role models.Role) error {
	if m.roles == nil {
		m.roles = make(map[string]models.RoleSet)
	}
	m.roles[userID] = append(m.roles[userID], role)
	m.granted = append(m.granted, userID+":"+string(role))
	return nil
}

func (m *mockRoleUserRepo) RevokeRole(ctx context.Context, userID string, role models.Role) error {
	m.revoked = append(m.revoked, userID+":"+string(role))
	return nil
}

func (m *mockRoleUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var list []models.User
	for _, u := range m.users {
		list = append(list, u)
	}
	return list, len(list), nil
}

func newRoleService(requests *mockRoleRequestRepo, users *mockRoleUserRepo) (*RoleService, *captureNotifier, *captureAudit) {
	notifier := &captureNotifier{}
	audits := &captureAudit{}
	svc := NewRoleService(requests, users, notifier, audits, validator.New(), zap.NewNop())
	return svc, notifier, audits
}

func TestRoleServiceRequest(t *testing.T) {
	requests := &mockRoleRequestRepo{}
	users := &mockRoleUserRepo{roles: map[string]models.RoleSet{"u1": {models.RoleStudent}}}
	svc, notifier, audits := newRoleService(requests, users)

	request, err := svc.Request(context.Background(), "u1", SubmitRoleRequest{Role: "TEACHER", Reason: "I teach tajwid."})
	require.NoError(t, err)
	assert.Equal(t, models.RoleRequestStatusPending, request.Status)
	assert.Equal(t, 1, requests.created)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionRoleRequest, audits.logs[0].Action)

	require.Len(t, notifier.byRole, 1)
	assert.Equal(t, models.RoleAdmin, notifier.byRole[0].Role)
	assert.Equal(t, models.NotificationRoleRequestSubmitted, notifier.byRole[0].Kind)

	// A second request for the same role is a conflict while one is pending.
	_, err = svc.Request(context.Background(), "u1", SubmitRoleRequest{Role: "TEACHER", Reason: "Again."})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, requests.created)
}

func TestRoleServiceRequestAlreadyHeld(t *testing.T) {
	requests := &mockRoleRequestRepo{}
	users := &mockRoleUserRepo{roles: map[string]models.RoleSet{"u1": {models.RoleTeacher}}}
	svc, _, _ := newRoleService(requests, users)

	_, err := svc.Request(context.Background(), "u1", SubmitRoleRequest{Role: "TEACHER", Reason: "Again."})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRoleServiceRequestUnrequestableRole(t *testing.T) {
	svc, _, _ := newRoleService(&mockRoleRequestRepo{}, &mockRoleUserRepo{})

	for _, role := range []string{"DIRECTOR", "STUDENT", "SUPERUSER"} {
		_, err := svc.Request(context.Background(), "u1", SubmitRoleRequest{Role: role, Reason: "Please."})
		require.Error(t, err, role)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestRoleServiceDecideApproveGrantsRole(t *testing.T) {
	requests := &mockRoleRequestRepo{requests: map[string]models.RoleRequest{
		"rr1": {ID: "rr1", UserID: "u1", Role: models.RoleTeacher, Status: models.RoleRequestStatusPending},
	}}
	users := &mockRoleUserRepo{roles: map[string]models.RoleSet{"u1": {models.RoleStudent}}}
	svc, notifier, audits := newRoleService(requests, users)

	decided, err := svc.Decide(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "rr1", true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleRequestStatusApproved, decided.Status)
	assert.Contains(t, users.granted, "u1:TEACHER")

	require.Len(t, notifier.direct, 1)
	assert.Equal(t, models.NotificationRoleApproved, notifier.direct[0].Kind)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionRoleGrant, audits.logs[0].Action)

	// Deciding twice is a conflict.
	_, err = svc.Decide(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "rr1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRoleServiceDecideAdminRequestNeedsDirector(t *testing.T) {
	requests := &mockRoleRequestRepo{requests: map[string]models.RoleRequest{
		"rr1": {ID: "rr1", UserID: "u1", Role: models.RoleAdmin, Status: models.RoleRequestStatusPending},
	}}
	users := &mockRoleUserRepo{roles: map[string]models.RoleSet{"u1": {models.RoleStudent}}}
	svc, _, _ := newRoleService(requests, users)

	// An admin cannot decide an admin-role request.
	_, err := svc.Decide(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "rr1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.RoleRequestStatusPending, requests.requests["rr1"].Status)
	assert.Empty(t, users.granted)

	// A director can.
	decided, err := svc.Decide(context.Background(), "d1", models.RoleSet{models.RoleDirector}, "rr1", true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleRequestStatusApproved, decided.Status)
	assert.Contains(t, users.granted, "u1:ADMIN")
}

func TestRoleServiceDecideRejectNotifies(t *testing.T) {
	requests := &mockRoleRequestRepo{requests: map[string]models.RoleRequest{
		"rr1": {ID: "rr1", UserID: "u1", Role: models.RoleTeacher, Status: models.RoleRequestStatusPending},
	}}
	users := &mockRoleUserRepo{}
	svc, notifier, _ := newRoleService(requests, users)

	decided, err := svc.Decide(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "rr1", false)
	require.NoError(t, err)
	assert.Equal(t, models.RoleRequestStatusRejected, decided.Status)
	assert.Empty(t, users.granted)
	require.Len(t, notifier.direct, 1)
	assert.Equal(t, models.NotificationRoleRejected, notifier.direct[0].Kind)
}

func TestRoleServiceGrantDirectorOnly(t *testing.T) {
	users := &mockRoleUserRepo{users: map[string]models.User{"u1": {ID: "u1"}}}
	svc, _, audits := newRoleService(&mockRoleRequestRepo{}, users)

	err := svc.Grant(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "u1", models.RoleTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Grant(context.Background(), "d1", models.RoleSet{models.RoleDirector}, "u1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Contains(t, users.granted, "u1:TEACHER")
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionRoleGrant, audits.logs[0].Action)
}

func TestRoleServiceRevokeDirectorOnly(t *testing.T) {
	users := &mockRoleUserRepo{}
	svc, _, _ := newRoleService(&mockRoleRequestRepo{}, users)

	err := svc.Revoke(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "u1", models.RoleTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Revoke(context.Background(), "d1", models.RoleSet{models.RoleDirector}, "u1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Contains(t, users.revoked, "u1:TEACHER")
}

func TestRoleServiceListUsersValidatesRoleFilter(t *testing.T) {
	svc, _, _ := newRoleService(&mockRoleRequestRepo{}, &mockRoleUserRepo{})

	_, _, err := svc.ListUsers(context.Background(), UserListRequest{Role: "WIZARD"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
