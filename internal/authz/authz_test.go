package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

var allPermissions = []Permission{
	PermManagePaths,
	PermManageModules,
	PermManageSessions,
	PermManageAnnouncements,
	PermManageEnrollments,
	PermRespondRequests,
	PermAnswerQuestions,
	PermMarkAttendance,
	PermViewReports,
}

func TestDirectorHasEveryPermission(t *testing.T) {
	sets := []models.RoleSet{
		{models.RoleDirector},
		{models.RoleStudent, models.RoleDirector},
		{models.RoleTeacher, models.RoleAdmin, models.RoleDirector},
	}
	for _, roles := range sets {
		for _, perm := range allPermissions {
			assert.True(t, HasPermission(roles, perm), "roles %v perm %s", roles, perm)
		}
	}
}

func TestNoElevatedRoleDeniedEverything(t *testing.T) {
	sets := []models.RoleSet{
		nil,
		{},
		{models.RoleStudent},
	}
	for _, roles := range sets {
		for _, perm := range allPermissions {
			assert.False(t, HasPermission(roles, perm), "roles %v perm %s", roles, perm)
		}
		assert.False(t, CanAccessTeacherPanel(roles))
		assert.False(t, CanAccessAdminPanel(roles))
		assert.False(t, CanAssignRoles(roles))
		assert.False(t, CanAssignTeacherOrAdmin(roles))
	}
}

func TestTeacherPermissions(t *testing.T) {
	teacher := models.RoleSet{models.RoleTeacher}

	assert.True(t, HasPermission(teacher, PermManageSessions))
	assert.True(t, HasPermission(teacher, PermAnswerQuestions))
	assert.True(t, HasPermission(teacher, PermMarkAttendance))
	assert.False(t, HasPermission(teacher, PermManagePaths))
	assert.False(t, HasPermission(teacher, PermManageEnrollments))
	assert.False(t, HasPermission(teacher, PermViewReports))

	assert.True(t, CanAccessTeacherPanel(teacher))
	assert.False(t, CanAccessAdminPanel(teacher))
	assert.False(t, CanAssignRoles(teacher))
	assert.False(t, CanAssignTeacherOrAdmin(teacher))
}

func TestHasTeacherPermission(t *testing.T) {
	assert.True(t, HasTeacherPermission(models.RoleSet{models.RoleAdmin}, PermManageSessions))
	assert.True(t, HasTeacherPermission(models.RoleSet{models.RoleDirector}, PermAnswerQuestions))
	assert.True(t, HasTeacherPermission(models.RoleSet{models.RoleTeacher}, PermMarkAttendance))
	assert.False(t, HasTeacherPermission(models.RoleSet{models.RoleTeacher}, PermManagePaths))
	assert.False(t, HasTeacherPermission(models.RoleSet{models.RoleStudent}, PermAnswerQuestions))
	assert.False(t, HasTeacherPermission(nil, PermAnswerQuestions))
}

func TestAdminPanelAndRoleAssignment(t *testing.T) {
	admin := models.RoleSet{models.RoleAdmin}
	director := models.RoleSet{models.RoleDirector}

	assert.True(t, CanAccessAdminPanel(admin))
	assert.True(t, CanAccessAdminPanel(director))
	assert.True(t, CanAssignTeacherOrAdmin(admin))
	assert.True(t, CanAssignTeacherOrAdmin(director))
	assert.False(t, CanAssignRoles(admin))
	assert.True(t, CanAssignRoles(director))
}

func TestCanAccessModuleAsTeacher(t *testing.T) {
	teacher := models.RoleSet{models.RoleTeacher}
	assigned := []string{"mod-a", "mod-c"}

	assert.True(t, CanAccessModuleAsTeacher(teacher, "mod-a", assigned))
	assert.True(t, CanAccessModuleAsTeacher(teacher, "mod-c", assigned))
	assert.False(t, CanAccessModuleAsTeacher(teacher, "mod-b", assigned))
	assert.False(t, CanAccessModuleAsTeacher(teacher, "mod-a", nil))

	// Admin and director bypass the assignment check entirely.
	assert.True(t, CanAccessModuleAsTeacher(models.RoleSet{models.RoleAdmin}, "mod-b", nil))
	assert.True(t, CanAccessModuleAsTeacher(models.RoleSet{models.RoleDirector}, "mod-b", nil))

	// Students never get module teacher access, assigned or not.
	assert.False(t, CanAccessModuleAsTeacher(models.RoleSet{models.RoleStudent}, "mod-a", assigned))
}
