package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	"github.com/noah-isme/irshad-lms-api/internal/ratelimit"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsOpen(ctx context.Context, studentID, moduleID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error
}

type enrollmentModuleRepository interface {
	FindModuleByID(ctx context.Context, id string) (*models.Module, error)
	ModuleTeachers(ctx context.Context, moduleID string) ([]models.ModuleTeacherDetail, error)
}

type enrollmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type enrollmentDispatcher interface {
	DispatchEnrollment(payload models.EnrollmentWebhookPayload)
}

// EnrollmentLimits is the fixed-window budget for enrollment submissions.
type EnrollmentLimits struct {
	Max    int
	Window time.Duration
}

// EnrollmentService manages module enrollment submissions and their review.
// Submissions are throttled per student and fan out a webhook plus
// notifications to the module's teachers and the admins.
type EnrollmentService struct {
	repo       enrollmentRepository
	modules    enrollmentModuleRepository
	users      enrollmentUserReader
	limiter    *ratelimit.Limiter
	limits     EnrollmentLimits
	dispatcher enrollmentDispatcher
	notifier   notifier
	audits     auditWriter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(repo enrollmentRepository, modules enrollmentModuleRepository, users enrollmentUserReader, limiter *ratelimit.Limiter, limits EnrollmentLimits, dispatcher enrollmentDispatcher, notifier notifier, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.Max <= 0 {
		limits.Max = 10
	}
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	return &EnrollmentService{
		repo:       repo,
		modules:    modules,
		users:      users,
		limiter:    limiter,
		limits:     limits,
		dispatcher: dispatcher,
		notifier:   notifier,
		audits:     audits,
		validator:  validate,
		logger:     logger,
	}
}

// EnrollmentListRequest describes filters for listing enrollments.
type EnrollmentListRequest struct {
	StudentID string
	ModuleID  string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// List returns enrollments with pagination.
func (s *EnrollmentService) List(ctx context.Context, req EnrollmentListRequest) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if req.Status != "" && !models.ValidEnrollmentStatus(models.EnrollmentStatus(req.Status)) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	filter := models.EnrollmentFilter{
		StudentID: req.StudentID,
		ModuleID:  req.ModuleID,
		Status:    models.EnrollmentStatus(req.Status),
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an enrollment with student and module info.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll submits a pending enrollment for a student. The rate limit check
// runs first; a denied attempt writes nothing.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, moduleID string) (*models.Enrollment, error) {
	if s.limiter != nil && !s.limiter.Allow("enroll:"+studentID, s.limits.Max, s.limits.Window) {
		return nil, appErrors.Clone(appErrors.ErrRateLimited, "too many enrollment attempts, please wait before trying again")
	}

	module, err := s.modules.FindModuleByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if !module.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
	}

	open, err := s.repo.ExistsOpen(ctx, studentID, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have an open enrollment for this module")
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		ModuleID:  moduleID,
		Status:    models.EnrollmentStatusPending,
		JoinedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.audit(ctx, studentID, models.AuditActionEnrollmentSubmit, "enrollment", enrollment.ID, "enrollment submitted for "+module.Title)
	s.fanOutSubmission(ctx, enrollment, module)
	return enrollment, nil
}

// Decide approves or rejects a pending enrollment and notifies the student.
func (s *EnrollmentService) Decide(ctx context.Context, actorID, enrollmentID string, approve bool) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment was already decided")
	}

	status := models.EnrollmentStatusActive
	kind := models.NotificationEnrollmentApproved
	title := "Enrollment approved"
	var leftAt *time.Time
	if !approve {
		status = models.EnrollmentStatusDropped
		kind = models.NotificationEnrollmentRejected
		title = "Enrollment rejected"
		now := time.Now().UTC()
		leftAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, enrollmentID, status, leftAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	enrollment.Status = status
	enrollment.LeftAt = leftAt

	s.audit(ctx, actorID, models.AuditActionEnrollmentUpdate, "enrollment", enrollment.ID, fmt.Sprintf("enrollment %s", status))
	if s.notifier != nil {
		s.notifier.NotifyUsers(ctx, []string{enrollment.StudentID}, kind,
			title, "", map[string]string{"enrollment_id": enrollment.ID, "module_id": enrollment.ModuleID})
	}
	return enrollment, nil
}

// UpdateStatus moves an enrollment to completed or dropped.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actorID, enrollmentID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	if status != models.EnrollmentStatusCompleted && status != models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be COMPLETED or DROPPED")
	}
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only active enrollments can be closed")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, enrollmentID, status, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	enrollment.Status = status
	enrollment.LeftAt = &now

	s.audit(ctx, actorID, models.AuditActionEnrollmentUpdate, "enrollment", enrollment.ID, fmt.Sprintf("enrollment %s", status))
	return enrollment, nil
}

// fanOutSubmission delivers the enrollment webhook and in-app notifications.
// All of it is best effort: the enrollment row is already committed.
func (s *EnrollmentService) fanOutSubmission(ctx context.Context, enrollment *models.Enrollment, module *models.Module) {
	teachers, err := s.modules.ModuleTeachers(ctx, module.ID)
	if err != nil {
		s.logger.Warn("failed to load module teachers for enrollment fan-out", zap.Error(err))
		teachers = nil
	}

	if s.dispatcher != nil {
		student, err := s.users.FindByID(ctx, enrollment.StudentID)
		if err != nil {
			s.logger.Warn("failed to load student for enrollment webhook", zap.Error(err))
		} else {
			s.dispatcher.DispatchEnrollment(models.EnrollmentWebhookPayload{
				Event:        "module_enrollment",
				EnrollmentID: enrollment.ID,
				Module:       models.EnrollmentModuleInfo{ID: module.ID, Title: module.Title},
				Student: models.EnrollmentStudentInfo{
					FullName: student.FullName,
					WhatsApp: student.WhatsApp,
					Email:    student.Email,
				},
				Teachers:    teachers,
				NotifyAdmin: true,
				SubmittedAt: enrollment.JoinedAt,
			})
		}
	}

	if s.notifier != nil {
		teacherIDs := make([]string, 0, len(teachers))
		for _, teacher := range teachers {
			teacherIDs = append(teacherIDs, teacher.UserID)
		}
		metadata := map[string]string{"enrollment_id": enrollment.ID, "module_id": module.ID}
		s.notifier.NotifyUsers(ctx, teacherIDs, models.NotificationStudentEnrolled,
			"New enrollment in "+module.Title, "", metadata)
		s.notifier.NotifyRole(ctx, models.RoleAdmin, models.NotificationEnrollmentSubmitted,
			"Enrollment awaiting review", module.Title, metadata)
	}
}

func (s *EnrollmentService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
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
