package models

import "time"

// RoleRequestStatus tracks the approval lifecycle of a role request.
type RoleRequestStatus string

const (
	RoleRequestStatusPending  RoleRequestStatus = "PENDING"
	RoleRequestStatusApproved RoleRequestStatus = "APPROVED"
	RoleRequestStatusRejected RoleRequestStatus = "REJECTED"
)

// RoleRequest is a self-service request to be granted an elevated role.
type RoleRequest struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	Role        Role              `db:"role" json:"role"`
	Reason      string            `db:"reason" json:"reason"`
	Status      RoleRequestStatus `db:"status" json:"status"`
	DecidedBy   *string           `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	SubmittedAt time.Time         `db:"submitted_at" json:"submitted_at"`
}

// RoleRequestFilter provides filters for listing role requests.
type RoleRequestFilter struct {
	UserID   string
	Status   RoleRequestStatus
	Page     int
	PageSize int
}
