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
	"github.com/noah-isme/irshad-lms-api/internal/ratelimit"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type requestRepository interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.GuidanceRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.GuidanceRequest, error)
	Create(ctx context.Context, request *models.GuidanceRequest) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
}

type requestDispatcher interface {
	DispatchRequest(payload models.RequestWebhookPayload)
}

// RequestLimits carries the per-type fixed-window budgets for submissions.
type RequestLimits struct {
	GuidanceMax    int
	GuidanceWindow time.Duration
	BayatMax       int
	BayatWindow    time.Duration
}

// RequestService manages bayat and guidance submissions. Submissions are
// throttled per user and type, audited, delivered by webhook and fanned out
// to the directors.
type RequestService struct {
	repo       requestRepository
	limiter    *ratelimit.Limiter
	limits     RequestLimits
	dispatcher requestDispatcher
	notifier   notifier
	audits     auditWriter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRequestService constructs the service.
func NewRequestService(repo requestRepository, limiter *ratelimit.Limiter, limits RequestLimits, dispatcher requestDispatcher, notifier notifier, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.GuidanceMax <= 0 {
		limits.GuidanceMax = 5
	}
	if limits.GuidanceWindow <= 0 {
		limits.GuidanceWindow = time.Hour
	}
	if limits.BayatMax <= 0 {
		limits.BayatMax = 3
	}
	if limits.BayatWindow <= 0 {
		limits.BayatWindow = time.Hour
	}
	return &RequestService{
		repo:       repo,
		limiter:    limiter,
		limits:     limits,
		dispatcher: dispatcher,
		notifier:   notifier,
		audits:     audits,
		validator:  validate,
		logger:     logger,
	}
}

// SubmitRequestRequest describes a bayat or guidance submission.
type SubmitRequestRequest struct {
	Type     string `json:"type" validate:"required"`
	FullName string `json:"full_name" validate:"required,max=200"`
	WhatsApp string `json:"whatsapp" validate:"required,max=30"`
	Country  string `json:"country" validate:"max=100"`
	City     string `json:"city" validate:"max=100"`
	Message  string `json:"message" validate:"max=2000"`
}

// RequestListRequest describes filters for listing requests.
type RequestListRequest struct {
	UserID   string
	Type     string
	Status   string
	Page     int
	PageSize int
}

// Submit records a new pending request. The rate limit check runs before any
// write; a denied attempt leaves no trace.
func (s *RequestService) Submit(ctx context.Context, userID string, req SubmitRequestRequest) (*models.GuidanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	requestType := models.RequestType(req.Type)
	if !models.ValidRequestType(requestType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be bayat or guidance")
	}

	maxRequests, window := s.limits.GuidanceMax, s.limits.GuidanceWindow
	if requestType == models.RequestTypeBayat {
		maxRequests, window = s.limits.BayatMax, s.limits.BayatWindow
	}
	if s.limiter != nil && !s.limiter.Allow(string(requestType)+":"+userID, maxRequests, window) {
		return nil, appErrors.Clone(appErrors.ErrRateLimited, "too many submissions, please wait before trying again")
	}

	now := time.Now().UTC()
	request := &models.GuidanceRequest{
		UserID:      userID,
		Type:        requestType,
		Status:      models.RequestStatusPending,
		FullName:    strings.TrimSpace(req.FullName),
		WhatsApp:    strings.TrimSpace(req.WhatsApp),
		Country:     strings.TrimSpace(req.Country),
		City:        strings.TrimSpace(req.City),
		Message:     strings.TrimSpace(req.Message),
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.audit(ctx, userID, models.AuditActionRequestSubmit, "request", request.ID, string(requestType)+" request submitted")

	if s.dispatcher != nil {
		s.dispatcher.DispatchRequest(models.RequestWebhookPayload{
			Type:        request.Type,
			ID:          request.ID,
			FullName:    request.FullName,
			WhatsApp:    request.WhatsApp,
			Country:     request.Country,
			City:        request.City,
			Message:     request.Message,
			SubmittedAt: request.SubmittedAt,
		})
	}

	if s.notifier != nil {
		kind := models.NotificationGuidanceSubmitted
		title := "New guidance request"
		if requestType == models.RequestTypeBayat {
			kind = models.NotificationBayatSubmitted
			title = "New bayat request"
		}
		s.notifier.NotifyRole(ctx, models.RoleDirector, kind, title, request.FullName,
			map[string]string{"request_id": request.ID})
	}

	return request, nil
}

// List returns requests with pagination.
func (s *RequestService) List(ctx context.Context, req RequestListRequest) ([]models.GuidanceRequest, *models.Pagination, error) {
	if req.Type != "" && !models.ValidRequestType(models.RequestType(req.Type)) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown request type")
	}
	if req.Status != "" && !models.ValidRequestStatus(models.RequestStatus(req.Status)) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown request status")
	}
	filter := models.RequestFilter{
		UserID:   req.UserID,
		Type:     models.RequestType(req.Type),
		Status:   models.RequestStatus(req.Status),
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
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns a request by id, scoped to its owner unless the caller reviews
// requests.
func (s *RequestService) Get(ctx context.Context, id, callerID string, reviewer bool) (*models.GuidanceRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !reviewer && request.UserID != callerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return request, nil
}

// UpdateStatus moves a request through its review lifecycle.
func (s *RequestService) UpdateStatus(ctx context.Context, actorID, id string, status models.RequestStatus) (*models.GuidanceRequest, error) {
	if !models.ValidRequestStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown request status")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	request.Status = status
	request.UpdatedAt = time.Now().UTC()

	s.audit(ctx, actorID, models.AuditActionRequestUpdate, "request", request.ID, "request moved to "+string(status))
	return request, nil
}

func (s *RequestService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
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
