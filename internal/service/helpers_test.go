package service

import (
	"context"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

// captureAudit records audit rows written by services under test.
type captureAudit struct {
	logs []models.AuditLog
}

func (c *captureAudit) Create(ctx context.Context, log *models.AuditLog) error {
	c.logs = append(c.logs, *log)
	return nil
}

type capturedNotification struct {
	UserIDs []string
	Role    models.Role
	Kind    models.NotificationType
	Title   string
}

// captureNotifier records fan-out calls without touching storage.
type captureNotifier struct {
	direct []capturedNotification
	byRole []capturedNotification
}

func (c *captureNotifier) NotifyUsers(ctx context.Context, userIDs []string, kind models.NotificationType, title, body string, metadata interface{}) {
	c.direct = append(c.direct, capturedNotification{UserIDs: userIDs, Kind: kind, Title: title})
}

func (c *captureNotifier) NotifyRole(ctx context.Context, role models.Role, kind models.NotificationType, title, body string, metadata interface{}) {
	c.byRole = append(c.byRole, capturedNotification{Role: role, Kind: kind, Title: title})
}

// captureDispatcher records webhook payloads handed to the queue.
type captureDispatcher struct {
	requests    []models.RequestWebhookPayload
	enrollments []models.EnrollmentWebhookPayload
}

func (c *captureDispatcher) DispatchRequest(payload models.RequestWebhookPayload) {
	c.requests = append(c.requests, payload)
}

func (c *captureDispatcher) DispatchEnrollment(payload models.EnrollmentWebhookPayload) {
	c.enrollments = append(c.enrollments, payload)
}
