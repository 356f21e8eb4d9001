package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type notificationRepository interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type roleDirectory interface {
	IDsWithRole(ctx context.Context, role models.Role) ([]string, error)
}

// NotificationService lists a user's in-app notifications and fans out new
// ones. Fan-out is a side effect of other workflows: failures are logged and
// never fail the triggering operation.
type NotificationService struct {
	repo   notificationRepository
	users  roleDirectory
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, users roleDirectory, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, users: users, logger: logger}
}

// NotificationListRequest describes filters for listing notifications.
type NotificationListRequest struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}

// List returns the user's notifications with pagination.
func (s *NotificationService) List(ctx context.Context, req NotificationListRequest) ([]models.Notification, *models.Pagination, error) {
	filter := models.NotificationFilter{
		UserID:     req.UserID,
		UnreadOnly: req.UnreadOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one notification as read, scoped to its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification of a user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// NotifyUsers creates one notification per target user. An unknown type or an
// empty target list is dropped with a warning.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []string, kind models.NotificationType, title, body string, metadata interface{}) {
	if !models.ValidNotificationType(kind) {
		s.logger.Warn("dropping notification with unknown type", zap.String("type", string(kind)))
		return
	}
	if len(userIDs) == 0 {
		return
	}

	var raw []byte
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn("failed to encode notification metadata", zap.Error(err))
		} else {
			raw = encoded
		}
	}

	notifications := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, models.Notification{
			UserID:   userID,
			Type:     kind,
			Title:    title,
			Body:     body,
			Metadata: raw,
		})
	}
	if err := s.repo.CreateBatch(ctx, notifications); err != nil {
		s.logger.Warn("failed to fan out notifications",
			zap.String("type", string(kind)), zap.Int("targets", len(userIDs)), zap.Error(err))
	}
}

// NotifyRole fans a notification out to every user currently holding the role.
func (s *NotificationService) NotifyRole(ctx context.Context, role models.Role, kind models.NotificationType, title, body string, metadata interface{}) {
	ids, err := s.users.IDsWithRole(ctx, role)
	if err != nil {
		s.logger.Warn("failed to resolve notification targets",
			zap.String("role", string(role)), zap.String("type", string(kind)), zap.Error(err))
		return
	}
	s.NotifyUsers(ctx, ids, kind, title, body, metadata)
}
