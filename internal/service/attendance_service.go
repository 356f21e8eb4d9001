package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type attendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	SummaryByModule(ctx context.Context, moduleID string) ([]models.AttendanceSummary, error)
}

type attendanceSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// AttendanceService records and reports session attendance. Marking is scoped
// the same way session management is: teachers only within assigned modules.
type AttendanceService struct {
	repo        attendanceRepository
	sessions    attendanceSessionReader
	assignments teacherAssignments
	audits      auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepository, sessions attendanceSessionReader, assignments teacherAssignments, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:        repo,
		sessions:    sessions,
		assignments: assignments,
		audits:      audits,
		validator:   validate,
		logger:      logger,
	}
}

// AttendanceMark is one student's mark inside a MarkAttendanceRequest.
type AttendanceMark struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// MarkAttendanceRequest describes a batch of marks for one session.
type MarkAttendanceRequest struct {
	Marks []AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// ListBySession returns the marks recorded for a session after a scope check.
func (s *AttendanceService) ListBySession(ctx context.Context, actorID string, roles models.RoleSet, sessionID string) ([]models.AttendanceRecord, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, session.ModuleID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Mark upserts the marks for a session. Re-marking a student overwrites the
// earlier mark. The scope check runs before any write.
func (s *AttendanceService) Mark(ctx context.Context, actorID string, roles models.RoleSet, sessionID string, req MarkAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	for _, mark := range req.Marks {
		if !models.ValidAttendanceStatus(models.AttendanceStatus(mark.Status)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, session.ModuleID); err != nil {
		return nil, err
	}

	markedAt := time.Now().UTC()
	records := make([]models.AttendanceRecord, 0, len(req.Marks))
	for _, mark := range req.Marks {
		record := models.AttendanceRecord{
			SessionID: sessionID,
			StudentID: mark.StudentID,
			Status:    models.AttendanceStatus(mark.Status),
			MarkedBy:  actorID,
			MarkedAt:  markedAt,
		}
		if err := s.repo.Upsert(ctx, &record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		records = append(records, record)
	}

	s.audit(ctx, actorID, models.AuditActionAttendanceMark, "session", sessionID, "attendance marked")
	return records, nil
}

// Summary aggregates marks per student across a module's sessions.
func (s *AttendanceService) Summary(ctx context.Context, actorID string, roles models.RoleSet, moduleID string) ([]models.AttendanceSummary, error) {
	if err := s.ensureModuleScope(ctx, actorID, roles, moduleID); err != nil {
		return nil, err
	}
	summaries, err := s.repo.SummaryByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summaries, nil
}

func (s *AttendanceService) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceService) ensureModuleScope(ctx context.Context, actorID string, roles models.RoleSet, moduleID string) error {
	var assigned []string
	if roles.Has(models.RoleTeacher) && !roles.Has(models.RoleAdmin) && !roles.Has(models.RoleDirector) {
		ids, err := s.assignments.AssignedModuleIDs(ctx, actorID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module assignments")
		}
		assigned = ids
	}
	if !authz.CanAccessModuleAsTeacher(roles, moduleID, assigned) {
		return appErrors.Clone(appErrors.ErrForbidden, "module is not assigned to you")
	}
	return nil
}

func (s *AttendanceService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
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
