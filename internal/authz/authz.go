package authz

import "github.com/noah-isme/irshad-lms-api/internal/models"

// Permission names a capability checked by request handlers. The mapping from
// roles to permissions is static; the role set itself is always re-fetched
// from the store by the caller.
type Permission string

const (
	PermManagePaths         Permission = "manage_paths"
	PermManageModules       Permission = "manage_modules"
	PermManageSessions      Permission = "manage_sessions"
	PermManageAnnouncements Permission = "manage_announcements"
	PermManageEnrollments   Permission = "manage_enrollments"
	PermRespondRequests     Permission = "respond_requests"
	PermAnswerQuestions     Permission = "answer_questions"
	PermMarkAttendance      Permission = "mark_attendance"
	PermViewReports         Permission = "view_reports"
)

// rolePermissions is the static role→permission table. Director is absent on
// purpose: it short-circuits every check.
var rolePermissions = map[models.Role]map[Permission]struct{}{
	models.RoleTeacher: {
		PermManageSessions:  {},
		PermAnswerQuestions: {},
		PermMarkAttendance:  {},
	},
	models.RoleAdmin: {
		PermManagePaths:         {},
		PermManageModules:       {},
		PermManageSessions:      {},
		PermManageAnnouncements: {},
		PermManageEnrollments:   {},
		PermRespondRequests:     {},
		PermAnswerQuestions:     {},
		PermMarkAttendance:      {},
		PermViewReports:         {},
	},
}

// HasPermission reports whether any held role carries the permission.
// Directors hold every permission; an empty role set holds none.
func HasPermission(roles models.RoleSet, permission Permission) bool {
	if roles.Has(models.RoleDirector) {
		return true
	}
	for _, role := range roles {
		if perms, ok := rolePermissions[role]; ok {
			if _, ok := perms[permission]; ok {
				return true
			}
		}
	}
	return false
}

// HasTeacherPermission reports whether the caller may exercise a teacher
// capability. Admin and director are treated as supersets of teacher.
func HasTeacherPermission(roles models.RoleSet, permission Permission) bool {
	if roles.Has(models.RoleDirector) || roles.Has(models.RoleAdmin) {
		return true
	}
	if !roles.Has(models.RoleTeacher) {
		return false
	}
	_, ok := rolePermissions[models.RoleTeacher][permission]
	return ok
}

// CanAccessTeacherPanel reports whether the teacher panel is visible.
func CanAccessTeacherPanel(roles models.RoleSet) bool {
	return roles.Has(models.RoleTeacher) || roles.Has(models.RoleAdmin) || roles.Has(models.RoleDirector)
}

// CanAccessAdminPanel reports whether the admin panel is visible.
func CanAccessAdminPanel(roles models.RoleSet) bool {
	return roles.Has(models.RoleAdmin) || roles.Has(models.RoleDirector)
}

// CanAssignRoles reports whether the caller may grant or revoke arbitrary
// roles. Only directors can.
func CanAssignRoles(roles models.RoleSet) bool {
	return roles.Has(models.RoleDirector)
}

// CanAssignTeacherOrAdmin reports whether the caller may approve teacher or
// admin role requests.
func CanAssignTeacherOrAdmin(roles models.RoleSet) bool {
	return roles.Has(models.RoleAdmin) || roles.Has(models.RoleDirector)
}

// CanAccessModuleAsTeacher is the module scoping rule: admin and director
// access any module, a teacher only modules they are assigned to. The
// assigned set must come from the store, never from the client.
func CanAccessModuleAsTeacher(roles models.RoleSet, moduleID string, assignedModuleIDs []string) bool {
	if roles.Has(models.RoleDirector) || roles.Has(models.RoleAdmin) {
		return true
	}
	if !roles.Has(models.RoleTeacher) {
		return false
	}
	for _, id := range assignedModuleIDs {
		if id == moduleID {
			return true
		}
	}
	return false
}
