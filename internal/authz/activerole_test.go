package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

func TestAvailableActiveRoles(t *testing.T) {
	cases := []struct {
		roles    models.RoleSet
		expected []models.ActiveRole
	}{
		{nil, []models.ActiveRole{models.ActiveRoleStudent}},
		{models.RoleSet{models.RoleStudent}, []models.ActiveRole{models.ActiveRoleStudent}},
		{models.RoleSet{models.RoleTeacher}, []models.ActiveRole{models.ActiveRoleTeacher, models.ActiveRoleStudent}},
		{models.RoleSet{models.RoleAdmin}, []models.ActiveRole{models.ActiveRoleAdmin, models.ActiveRoleStudent}},
		{models.RoleSet{models.RoleDirector}, []models.ActiveRole{models.ActiveRoleAdmin, models.ActiveRoleStudent}},
		{models.RoleSet{models.RoleTeacher, models.RoleAdmin}, []models.ActiveRole{models.ActiveRoleAdmin, models.ActiveRoleTeacher, models.ActiveRoleStudent}},
		// Admin and director together still yield a single admin lens.
		{models.RoleSet{models.RoleAdmin, models.RoleDirector}, []models.ActiveRole{models.ActiveRoleAdmin, models.ActiveRoleStudent}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, AvailableActiveRoles(tc.roles), "roles %v", tc.roles)
	}
}

func TestResolveActiveRoleEmptySetForcesStudent(t *testing.T) {
	assert.Equal(t, models.ActiveRoleStudent, ResolveActiveRole(nil, models.ActiveRoleAdmin, models.ActiveRoleTeacher))
}

func TestResolveActiveRoleSingleLensForced(t *testing.T) {
	// Only one derivable lens: the request is ignored.
	roles := models.RoleSet{models.RoleStudent}
	assert.Equal(t, models.ActiveRoleStudent, ResolveActiveRole(roles, models.ActiveRoleAdmin, ""))
}

func TestResolveActiveRolePrefersPreviousOverride(t *testing.T) {
	roles := models.RoleSet{models.RoleTeacher, models.RoleAdmin}
	got := ResolveActiveRole(roles, models.ActiveRoleAdmin, models.ActiveRoleTeacher)
	assert.Equal(t, models.ActiveRoleTeacher, got)
}

func TestResolveActiveRoleFallsBackToRequest(t *testing.T) {
	roles := models.RoleSet{models.RoleTeacher, models.RoleAdmin}
	// Previous override no longer valid for this role set.
	got := ResolveActiveRole(roles, models.ActiveRoleTeacher, "bogus")
	assert.Equal(t, models.ActiveRoleTeacher, got)
}

func TestResolveActiveRolePriorityFallback(t *testing.T) {
	roles := models.RoleSet{models.RoleTeacher, models.RoleAdmin}
	assert.Equal(t, models.ActiveRoleAdmin, ResolveActiveRole(roles, "", ""))

	roles = models.RoleSet{models.RoleTeacher, models.RoleStudent}
	assert.Equal(t, models.ActiveRoleTeacher, ResolveActiveRole(roles, "", ""))
}

func TestResolveActiveRoleNeverEscapesDerivedSet(t *testing.T) {
	sets := []models.RoleSet{
		nil,
		{models.RoleStudent},
		{models.RoleTeacher},
		{models.RoleAdmin},
		{models.RoleDirector},
		{models.RoleStudent, models.RoleTeacher},
		{models.RoleTeacher, models.RoleAdmin, models.RoleDirector},
	}
	lenses := []models.ActiveRole{"", models.ActiveRoleStudent, models.ActiveRoleTeacher, models.ActiveRoleAdmin, "bogus"}
	for _, roles := range sets {
		for _, requested := range lenses {
			for _, previous := range lenses {
				resolved := ResolveActiveRole(roles, requested, previous)
				assert.Contains(t, AvailableActiveRoles(roles), resolved,
					"roles %v requested %q previous %q", roles, requested, previous)
			}
		}
	}
}
