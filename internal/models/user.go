package models

import "time"

// Role represents a durable capability tag stored for a user. Roles are
// non-exclusive: a user may hold several at once.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleTeacher  Role = "TEACHER"
	RoleAdmin    Role = "ADMIN"
	RoleDirector Role = "DIRECTOR"
)

// ValidRole reports whether the tag is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleDirector:
		return true
	}
	return false
}

// RoleSet is the set of roles a user holds. Order is irrelevant.
type RoleSet []Role

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// ActiveRole is the transient, user-chosen lens over held roles. It changes
// UI framing only and never grants access; director collapses into admin for
// viewing purposes.
type ActiveRole string

const (
	ActiveRoleStudent ActiveRole = "student"
	ActiveRoleTeacher ActiveRole = "teacher"
	ActiveRoleAdmin   ActiveRole = "admin"
)

// ValidActiveRole reports whether the tag is one of the three known lenses.
func ValidActiveRole(r ActiveRole) bool {
	switch r {
	case ActiveRoleStudent, ActiveRoleTeacher, ActiveRoleAdmin:
		return true
	}
	return false
}

// ActiveRoleCookie is the cookie persisting the chosen lens.
const (
	ActiveRoleCookie       = "activeRole"
	ActiveRoleCookieMaxAge = 31536000 // one year in seconds
)

// User represents an application user stored in the users table. Roles live
// in the user_roles relation and are loaded separately.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	WhatsApp     string     `db:"whatsapp" json:"whatsapp,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *Role
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
