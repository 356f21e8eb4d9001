package models

import "time"

// RequestType distinguishes the two kinds of spiritual requests.
type RequestType string

const (
	RequestTypeBayat    RequestType = "bayat"
	RequestTypeGuidance RequestType = "guidance"
)

// ValidRequestType reports whether the type is known.
func ValidRequestType(t RequestType) bool {
	return t == RequestTypeBayat || t == RequestTypeGuidance
}

// RequestStatus tracks the review lifecycle of a request.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "pending"
	RequestStatusUnderReview RequestStatus = "under_review"
	RequestStatusResponded   RequestStatus = "responded"
)

// ValidRequestStatus reports whether the status is in the closed set.
func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestStatusPending, RequestStatusUnderReview, RequestStatusResponded:
		return true
	}
	return false
}

// GuidanceRequest is a bayat or guidance submission awaiting director review.
type GuidanceRequest struct {
	ID          string        `db:"id" json:"id"`
	UserID      string        `db:"user_id" json:"user_id"`
	Type        RequestType   `db:"type" json:"type"`
	Status      RequestStatus `db:"status" json:"status"`
	FullName    string        `db:"full_name" json:"full_name"`
	WhatsApp    string        `db:"whatsapp" json:"whatsapp"`
	Country     string        `db:"country" json:"country,omitempty"`
	City        string        `db:"city" json:"city,omitempty"`
	Message     string        `db:"message" json:"message,omitempty"`
	SubmittedAt time.Time     `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// RequestFilter provides filters for listing requests.
type RequestFilter struct {
	UserID   string
	Type     RequestType
	Status   RequestStatus
	Page     int
	PageSize int
}

// RequestWebhookPayload is the outbound webhook body for request submissions.
type RequestWebhookPayload struct {
	Type        RequestType `json:"type"`
	ID          string      `json:"id"`
	FullName    string      `json:"fullName"`
	WhatsApp    string      `json:"whatsapp"`
	Country     string      `json:"country,omitempty"`
	City        string      `json:"city,omitempty"`
	Message     string      `json:"message,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// EnrollmentWebhookPayload is the outbound webhook body for module enrollments.
type EnrollmentWebhookPayload struct {
	Event        string                `json:"event"`
	EnrollmentID string                `json:"enrollmentId"`
	Module       EnrollmentModuleInfo  `json:"module"`
	Student      EnrollmentStudentInfo `json:"student"`
	Teachers     []ModuleTeacherDetail `json:"teachers"`
	NotifyAdmin  bool                  `json:"notifyAdmin"`
	SubmittedAt  time.Time             `json:"submittedAt"`
}

// EnrollmentModuleInfo identifies the module in webhook payloads.
type EnrollmentModuleInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// EnrollmentStudentInfo identifies the student in webhook payloads.
type EnrollmentStudentInfo struct {
	FullName string `json:"fullName"`
	WhatsApp string `json:"whatsapp"`
	Email    string `json:"email"`
}
