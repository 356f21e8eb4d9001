package models

import "time"

// NotificationType is the closed set of notification tags spanning student,
// teacher, admin and director audiences.
type NotificationType string

const (
	// Student-facing.
	NotificationEnrollmentApproved NotificationType = "enrollment_approved"
	NotificationEnrollmentRejected NotificationType = "enrollment_rejected"
	NotificationQuestionAnswered   NotificationType = "question_answered"
	NotificationSessionPublished   NotificationType = "session_published"
	NotificationAnnouncement       NotificationType = "announcement"
	NotificationRoleApproved       NotificationType = "role_approved"
	NotificationRoleRejected       NotificationType = "role_rejected"

	// Teacher-facing.
	NotificationModuleAssigned    NotificationType = "module_assigned"
	NotificationModuleUnassigned  NotificationType = "module_unassigned"
	NotificationStudentEnrolled   NotificationType = "student_enrolled"
	NotificationQuestionSubmitted NotificationType = "question_submitted"

	// Admin-facing.
	NotificationEnrollmentSubmitted  NotificationType = "enrollment_submitted"
	NotificationRoleRequestSubmitted NotificationType = "role_request_submitted"

	// Director-facing.
	NotificationBayatSubmitted    NotificationType = "bayat_request_submitted"
	NotificationGuidanceSubmitted NotificationType = "guidance_request_submitted"
)

// ValidNotificationType reports whether the tag is in the closed set.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationEnrollmentApproved, NotificationEnrollmentRejected,
		NotificationQuestionAnswered, NotificationSessionPublished,
		NotificationAnnouncement, NotificationRoleApproved, NotificationRoleRejected,
		NotificationModuleAssigned, NotificationModuleUnassigned,
		NotificationStudentEnrolled, NotificationQuestionSubmitted,
		NotificationEnrollmentSubmitted, NotificationRoleRequestSubmitted,
		NotificationBayatSubmitted, NotificationGuidanceSubmitted:
		return true
	}
	return false
}

// Notification is a persisted in-app notification row.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body,omitempty"`
	Metadata  []byte           `db:"metadata" json:"metadata,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter provides filters for listing a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
