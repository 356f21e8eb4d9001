package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type sessionRepository interface {
	ListByModule(ctx context.Context, moduleID string) ([]models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

type moduleReader interface {
	FindModuleByID(ctx context.Context, id string) (*models.Module, error)
}

type teacherAssignments interface {
	AssignedModuleIDs(ctx context.Context, userID string) ([]string, error)
}

type enrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// SessionService manages the content units of a module. Mutations are scoped:
// a teacher may only touch modules they are assigned to, and the assignment
// set always comes from the store.
type SessionService struct {
	repo        sessionRepository
	modules     moduleReader
	assignments teacherAssignments
	enrollments enrollmentReader
	audits      auditWriter
	notifier    notifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(repo sessionRepository, modules moduleReader, assignments teacherAssignments, enrollments enrollmentReader, audits auditWriter, notifier notifier, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:        repo,
		modules:     modules,
		assignments: assignments,
		enrollments: enrollments,
		audits:      audits,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// SaveSessionRequest describes create and update payloads for a session. An
// empty type defaults to reading; an unknown type is rejected.
type SaveSessionRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url" validate:"omitempty,url"`
	Position  int    `json:"position" validate:"min=0"`
	Published bool   `json:"published"`
}

// ListByModule returns a module's sessions. Students only see published ones.
func (s *SessionService) ListByModule(ctx context.Context, moduleID string, includeUnpublished bool) ([]models.Session, error) {
	if _, err := s.loadModule(ctx, moduleID); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	if includeUnpublished {
		return sessions, nil
	}
	visible := sessions[:0]
	for _, session := range sessions {
		if session.Published {
			visible = append(visible, session)
		}
	}
	return visible, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string, includeUnpublished bool) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.Published && !includeUnpublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return session, nil
}

// Create registers a session inside a module. The scope check runs before any
// write: an unassigned teacher is rejected with nothing persisted.
func (s *SessionService) Create(ctx context.Context, actorID string, roles models.RoleSet, moduleID string, req SaveSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	sessionType, err := resolveSessionType(req.Type)
	if err != nil {
		return nil, err
	}

	module, err := s.loadModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, moduleID); err != nil {
		return nil, err
	}

	session := &models.Session{
		ModuleID:  moduleID,
		Title:     req.Title,
		Type:      sessionType,
		Content:   req.Content,
		MediaURL:  req.MediaURL,
		Position:  req.Position,
		Published: req.Published,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.audit(ctx, actorID, models.AuditActionSessionCreate, "session", session.ID, "session created: "+session.Title)
	if session.Published {
		s.notifyStudents(ctx, module, session)
	}
	return session, nil
}

// Update rewrites a session's mutable fields. Publishing a previously hidden
// session notifies the module's active students.
func (s *SessionService) Update(ctx context.Context, actorID string, roles models.RoleSet, id string, req SaveSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	sessionType, err := resolveSessionType(req.Type)
	if err != nil {
		return nil, err
	}

	session, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	module, err := s.loadModule(ctx, session.ModuleID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, session.ModuleID); err != nil {
		return nil, err
	}

	wasPublished := session.Published
	session.Title = req.Title
	session.Type = sessionType
	session.Content = req.Content
	session.MediaURL = req.MediaURL
	session.Position = req.Position
	session.Published = req.Published
	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	s.audit(ctx, actorID, models.AuditActionSessionUpdate, "session", session.ID, "session updated: "+session.Title)
	if session.Published && !wasPublished {
		s.notifyStudents(ctx, module, session)
	}
	return session, nil
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, actorID string, roles models.RoleSet, id string) error {
	session, err := s.Get(ctx, id, true)
	if err != nil {
		return err
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, session.ModuleID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.audit(ctx, actorID, models.AuditActionSessionDelete, "session", id, "session deleted")
	return nil
}

func resolveSessionType(raw string) (models.SessionType, error) {
	if raw == "" {
		return models.SessionTypeReading, nil
	}
	sessionType := models.SessionType(raw)
	if !models.ValidSessionType(sessionType) {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown session type")
	}
	return sessionType, nil
}

func (s *SessionService) loadModule(ctx context.Context, moduleID string) (*models.Module, error) {
	module, err := s.modules.FindModuleByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

func (s *SessionService) ensureModuleScope(ctx context.Context, actorID string, roles models.RoleSet, moduleID string) error {
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

func (s *SessionService) notifyStudents(ctx context.Context, module *models.Module, session *models.Session) {
	if s.notifier == nil || s.enrollments == nil {
		return
	}
	enrollments, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		ModuleID: module.ID,
		Status:   models.EnrollmentStatusActive,
		PageSize: 100,
	})
	if err != nil {
		s.logger.Warn("failed to load students for session notification", zap.Error(err))
		return
	}
	ids := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ids = append(ids, enrollment.StudentID)
	}
	s.notifier.NotifyUsers(ctx, ids, models.NotificationSessionPublished,
		"New session in "+module.Title, session.Title,
		map[string]string{"module_id": module.ID, "session_id": session.ID})
}

func (s *SessionService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
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
