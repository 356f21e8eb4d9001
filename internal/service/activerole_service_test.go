package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type mockActiveRoleRepo struct {
	users map[string]models.User
	roles map[string]models.RoleSet
}

func (m *mockActiveRoleRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockActiveRoleRepo) Roles(ctx context.Context, userID string) (models.RoleSet, error) {
	return m.roles[userID], nil
}

func newActiveRoleService(roles models.RoleSet) *ActiveRoleService {
	repo := &mockActiveRoleRepo{
		users: map[string]models.User{"u1": {ID: "u1", Active: true}},
		roles: map[string]models.RoleSet{"u1": roles},
	}
	return NewActiveRoleService(repo, zap.NewNop())
}

func TestActiveRoleServiceResolveKeepsValidCookie(t *testing.T) {
	svc := newActiveRoleService(models.RoleSet{models.RoleStudent, models.RoleTeacher})

	state, err := svc.Resolve(context.Background(), "u1", models.ActiveRoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, models.ActiveRoleTeacher, state.ActiveRole)
	assert.ElementsMatch(t, []models.ActiveRole{models.ActiveRoleStudent, models.ActiveRoleTeacher}, state.Available)
}

func TestActiveRoleServiceResolveReplacesStaleCookie(t *testing.T) {
	// The teacher role was revoked since the cookie was written.
	svc := newActiveRoleService(models.RoleSet{models.RoleStudent})

	state, err := svc.Resolve(context.Background(), "u1", models.ActiveRoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, models.ActiveRoleStudent, state.ActiveRole)
}

func TestActiveRoleServiceResolveDirectorSeesAdminLens(t *testing.T) {
	svc := newActiveRoleService(models.RoleSet{models.RoleDirector})

	state, err := svc.Resolve(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ActiveRoleAdmin, state.ActiveRole)
	assert.Contains(t, state.Available, models.ActiveRoleAdmin)
}

func TestActiveRoleServiceSelectNotHeld(t *testing.T) {
	svc := newActiveRoleService(models.RoleSet{models.RoleStudent})

	_, err := svc.Select(context.Background(), "u1", models.ActiveRoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestActiveRoleServiceSelectUnknownLens(t *testing.T) {
	svc := newActiveRoleService(models.RoleSet{models.RoleStudent})

	_, err := svc.Select(context.Background(), "u1", models.ActiveRole("superuser"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestActiveRoleServiceSelectHeld(t *testing.T) {
	svc := newActiveRoleService(models.RoleSet{models.RoleStudent, models.RoleAdmin})

	state, err := svc.Select(context.Background(), "u1", models.ActiveRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.ActiveRoleAdmin, state.ActiveRole)
}

func TestActiveRoleServiceInactiveUser(t *testing.T) {
	repo := &mockActiveRoleRepo{
		users: map[string]models.User{"u1": {ID: "u1", Active: false}},
		roles: map[string]models.RoleSet{"u1": {models.RoleStudent}},
	}
	svc := NewActiveRoleService(repo, zap.NewNop())

	_, err := svc.Resolve(context.Background(), "u1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}
