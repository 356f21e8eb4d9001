package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionPasswordChange   = "PASSWORD_CHANGE"
	AuditActionPathCreate       = "PATH_CREATE"
	AuditActionPathUpdate       = "PATH_UPDATE"
	AuditActionPathDelete       = "PATH_DELETE"
	AuditActionModuleCreate     = "MODULE_CREATE"
	AuditActionModuleUpdate     = "MODULE_UPDATE"
	AuditActionSessionCreate    = "SESSION_CREATE"
	AuditActionSessionUpdate    = "SESSION_UPDATE"
	AuditActionSessionDelete    = "SESSION_DELETE"
	AuditActionEnrollmentSubmit = "ENROLLMENT_SUBMIT"
	AuditActionEnrollmentUpdate = "ENROLLMENT_UPDATE"
	AuditActionRequestSubmit    = "REQUEST_SUBMIT"
	AuditActionRequestUpdate    = "REQUEST_UPDATE"
	AuditActionQuestionSubmit   = "QUESTION_SUBMIT"
	AuditActionQuestionAnswer   = "QUESTION_ANSWER"
	AuditActionAttendanceMark   = "ATTENDANCE_MARK"
	AuditActionAnnouncementSave = "ANNOUNCEMENT_SAVE"
	AuditActionRoleRequest      = "ROLE_REQUEST"
	AuditActionRoleGrant        = "ROLE_GRANT"
	AuditActionRoleRevoke       = "ROLE_REVOKE"
	AuditActionTeacherAssign    = "TEACHER_ASSIGN"
	AuditActionTeacherUnassign  = "TEACHER_UNASSIGN"
)

// AuditLog represents an audit trail record. ActorRole captures the lens the
// actor performed the action under, not the full role set.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorID     *string   `db:"actor_id" json:"actor_id,omitempty"`
	ActorRole   string    `db:"actor_role" json:"actor_role"`
	Action      string    `db:"action" json:"action"`
	Resource    string    `db:"resource" json:"resource"`
	ResourceID  *string   `db:"resource_id" json:"resource_id,omitempty"`
	Description string    `db:"description" json:"description"`
	Metadata    []byte    `db:"metadata" json:"metadata,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
