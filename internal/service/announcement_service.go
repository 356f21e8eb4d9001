package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	notifier  notifier
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, notifier notifier, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnnouncementService{repo: repo, notifier: notifier, audits: audits, validator: validate, logger: logger}
	svc.validator.RegisterValidation("audience", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementAudience(strings.ToUpper(fl.Field().String())) {
		case models.AnnouncementAudienceAll, models.AnnouncementAudienceStudents, models.AnnouncementAudienceTeachers:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementPriority(strings.ToUpper(fl.Field().String())) {
		case models.AnnouncementPriorityLow, models.AnnouncementPriorityNormal, models.AnnouncementPriorityHigh:
			return true
		default:
			return false
		}
	})
	return svc
}

// AnnouncementListRequest describes filters for listing announcements.
type AnnouncementListRequest struct {
	Audience models.AnnouncementAudience
	Page     int
	PageSize int
}

// SaveAnnouncementRequest describes create and update payloads.
type SaveAnnouncementRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Content     string     `json:"content" validate:"required"`
	Audience    string     `json:"audience" validate:"required,audience"`
	Priority    string     `json:"priority" validate:"required,priority"`
	IsPinned    bool       `json:"is_pinned"`
	PublishedAt *time.Time `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// List returns live announcements visible to the audience with pagination.
func (s *AnnouncementService) List(ctx context.Context, req AnnouncementListRequest) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{
		Audience: req.Audience,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}
	return announcement, nil
}

// Create registers a new announcement and fans a notification out to the
// targeted roles.
func (s *AnnouncementService) Create(ctx context.Context, actorID string, req SaveAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	publishedAt := time.Now().UTC()
	if req.PublishedAt != nil {
		publishedAt = req.PublishedAt.UTC()
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(publishedAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be after published_at")
	}

	announcement := &models.Announcement{
		Title:       req.Title,
		Content:     req.Content,
		Audience:    models.AnnouncementAudience(strings.ToUpper(req.Audience)),
		Priority:    models.AnnouncementPriority(strings.ToUpper(req.Priority)),
		IsPinned:    req.IsPinned,
		PublishedAt: publishedAt,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   actorID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.audit(ctx, actorID, models.AuditActionAnnouncementSave, "announcement", announcement.ID, "announcement created: "+announcement.Title)
	s.notifyAudience(ctx, announcement)
	return announcement, nil
}

// Update modifies an existing announcement.
func (s *AnnouncementService) Update(ctx context.Context, actorID, id string, req SaveAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	publishedAt := existing.PublishedAt
	if req.PublishedAt != nil {
		publishedAt = req.PublishedAt.UTC()
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(publishedAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be after published_at")
	}

	existing.Title = req.Title
	existing.Content = req.Content
	existing.Audience = models.AnnouncementAudience(strings.ToUpper(req.Audience))
	existing.Priority = models.AnnouncementPriority(strings.ToUpper(req.Priority))
	existing.IsPinned = req.IsPinned
	existing.PublishedAt = publishedAt
	existing.ExpiresAt = req.ExpiresAt
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}

	s.audit(ctx, actorID, models.AuditActionAnnouncementSave, "announcement", existing.ID, "announcement updated: "+existing.Title)
	return existing, nil
}

// Delete removes an announcement by id.
func (s *AnnouncementService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	s.audit(ctx, actorID, models.AuditActionAnnouncementSave, "announcement", id, "announcement deleted")
	return nil
}

// notifyAudience fans the announcement out to the users holding the targeted
// roles. Users without a role row still see the announcement in the feed;
// this covers the in-app badge only.
func (s *AnnouncementService) notifyAudience(ctx context.Context, announcement *models.Announcement) {
	if s.notifier == nil {
		return
	}
	metadata := map[string]string{"announcement_id": announcement.ID}
	switch announcement.Audience {
	case models.AnnouncementAudienceStudents:
		s.notifier.NotifyRole(ctx, models.RoleStudent, models.NotificationAnnouncement, announcement.Title, "", metadata)
	case models.AnnouncementAudienceTeachers:
		s.notifier.NotifyRole(ctx, models.RoleTeacher, models.NotificationAnnouncement, announcement.Title, "", metadata)
	default:
		s.notifier.NotifyRole(ctx, models.RoleStudent, models.NotificationAnnouncement, announcement.Title, "", metadata)
		s.notifier.NotifyRole(ctx, models.RoleTeacher, models.NotificationAnnouncement, announcement.Title, "", metadata)
	}
}

func (s *AnnouncementService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
	if s.audits == nil {
		return
	}
	log := &models.AuditLog{
		ActorID:     &actorID,
		Action:      action,
		Resource:    resource,
		ResourceID:  &resourceID,
		Description: description,
	}
	if err := s.audits.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err), zap.String("action", action))
	}
}
