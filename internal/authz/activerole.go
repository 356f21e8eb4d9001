package authz

import "github.com/noah-isme/irshad-lms-api/internal/models"

// AvailableActiveRoles maps a durable role set to the ordered set of lenses
// the user may view the app as. Admin and director both map to the admin
// lens; anyone may view as student.
func AvailableActiveRoles(roles models.RoleSet) []models.ActiveRole {
	var available []models.ActiveRole
	if CanAccessAdminPanel(roles) {
		available = append(available, models.ActiveRoleAdmin)
	}
	if roles.Has(models.RoleTeacher) {
		available = append(available, models.ActiveRoleTeacher)
	}
	available = append(available, models.ActiveRoleStudent)
	return available
}

// HoldsActiveRole reports whether the lens is backed by a held role.
func HoldsActiveRole(roles models.RoleSet, lens models.ActiveRole) bool {
	for _, available := range AvailableActiveRoles(roles) {
		if available == lens {
			return true
		}
	}
	return false
}

// ResolveActiveRole reconciles the durable role set with a transient
// preference. An invalid previous override or request is silently dropped;
// the result is always a member of AvailableActiveRoles(roles).
func ResolveActiveRole(roles models.RoleSet, requested, previous models.ActiveRole) models.ActiveRole {
	available := AvailableActiveRoles(roles)
	if len(available) == 1 {
		return available[0]
	}
	for _, candidate := range []models.ActiveRole{previous, requested} {
		if candidate == "" {
			continue
		}
		for _, a := range available {
			if a == candidate {
				return candidate
			}
		}
	}
	// Fall back in priority order admin, teacher, student.
	return available[0]
}
