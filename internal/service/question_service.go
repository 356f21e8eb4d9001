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

type questionRepository interface {
	List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error)
	FindByID(ctx context.Context, id string) (*models.Question, error)
	Create(ctx context.Context, question *models.Question) error
	Answer(ctx context.Context, id, answer, answeredBy string, answeredAt time.Time) error
}

type questionEnrollmentChecker interface {
	ExistsOpen(ctx context.Context, studentID, moduleID string) (bool, error)
}

// QuestionService manages private questions students ask within a module.
// Questions are visible to the asking student and the module's teachers only.
type QuestionService struct {
	repo        questionRepository
	modules     enrollmentModuleRepository
	enrollments questionEnrollmentChecker
	assignments teacherAssignments
	notifier    notifier
	audits      auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewQuestionService constructs the service.
func NewQuestionService(repo questionRepository, modules enrollmentModuleRepository, enrollments questionEnrollmentChecker, assignments teacherAssignments, notifier notifier, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *QuestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{
		repo:        repo,
		modules:     modules,
		enrollments: enrollments,
		assignments: assignments,
		notifier:    notifier,
		audits:      audits,
		validator:   validate,
		logger:      logger,
	}
}

// AskQuestionRequest describes a question submission.
type AskQuestionRequest struct {
	ModuleID string `json:"module_id" validate:"required"`
	Body     string `json:"body" validate:"required,max=4000"`
}

// AnswerQuestionRequest describes an answer payload.
type AnswerQuestionRequest struct {
	Answer string `json:"answer" validate:"required,max=4000"`
}

// QuestionListRequest describes filters for listing questions.
type QuestionListRequest struct {
	StudentID string
	ModuleID  string
	Status    string
	Page      int
	PageSize  int
}

// Ask submits a question to the teachers of a module. Only enrolled students
// may ask.
func (s *QuestionService) Ask(ctx context.Context, studentID string, req AskQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	module, err := s.modules.FindModuleByID(ctx, req.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	enrolled, err := s.enrollments.ExistsOpen(ctx, studentID, req.ModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this module")
	}

	question := &models.Question{
		StudentID: studentID,
		ModuleID:  req.ModuleID,
		Body:      req.Body,
		Status:    models.QuestionStatusOpen,
	}
	if err := s.repo.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}

	s.audit(ctx, studentID, models.AuditActionQuestionSubmit, "question", question.ID, "question submitted in "+module.Title)

	if s.notifier != nil {
		teachers, err := s.modules.ModuleTeachers(ctx, module.ID)
		if err != nil {
			s.logger.Warn("failed to load teachers for question fan-out", zap.Error(err))
		} else {
			ids := make([]string, 0, len(teachers))
			for _, teacher := range teachers {
				ids = append(ids, teacher.UserID)
			}
			s.notifier.NotifyUsers(ctx, ids, models.NotificationQuestionSubmitted,
				"New question in "+module.Title, "",
				map[string]string{"question_id": question.ID, "module_id": module.ID})
		}
	}
	return question, nil
}

// Answer stores the answer to an open question. The module scope check runs
// before any write.
func (s *QuestionService) Answer(ctx context.Context, actorID string, roles models.RoleSet, questionID string, req AnswerQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	question, err := s.repo.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if question.Status == models.QuestionStatusAnswered {
		return nil, appErrors.Clone(appErrors.ErrConflict, "question was already answered")
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, question.ModuleID); err != nil {
		return nil, err
	}

	answeredAt := time.Now().UTC()
	if err := s.repo.Answer(ctx, questionID, req.Answer, actorID, answeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to answer question")
	}
	question.Answer = req.Answer
	question.AnsweredBy = &actorID
	question.AnsweredAt = &answeredAt
	question.Status = models.QuestionStatusAnswered

	s.audit(ctx, actorID, models.AuditActionQuestionAnswer, "question", question.ID, "question answered")
	if s.notifier != nil {
		s.notifier.NotifyUsers(ctx, []string{question.StudentID}, models.NotificationQuestionAnswered,
			"Your question was answered", "",
			map[string]string{"question_id": question.ID, "module_id": question.ModuleID})
	}
	return question, nil
}

// List returns questions with pagination. Callers scope the filter: students
// to their own questions, teachers to an assigned module.
func (s *QuestionService) List(ctx context.Context, req QuestionListRequest) ([]models.Question, *models.Pagination, error) {
	if req.Status != "" && !models.ValidQuestionStatus(models.QuestionStatus(req.Status)) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown question status")
	}
	filter := models.QuestionFilter{
		StudentID: req.StudentID,
		ModuleID:  req.ModuleID,
		Status:    models.QuestionStatus(req.Status),
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// ListForModule returns a module's questions after a teacher scope check.
func (s *QuestionService) ListForModule(ctx context.Context, actorID string, roles models.RoleSet, req QuestionListRequest) ([]models.Question, *models.Pagination, error) {
	if req.ModuleID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "module_id is required")
	}
	if err := s.ensureModuleScope(ctx, actorID, roles, req.ModuleID); err != nil {
		return nil, nil, err
	}
	return s.List(ctx, req)
}

// Get returns a question visible to the caller: the asking student or a
// teacher within the module's scope.
func (s *QuestionService) Get(ctx context.Context, callerID string, roles models.RoleSet, id string) (*models.Question, error) {
	question, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if question.StudentID == callerID {
		return question, nil
	}
	if err := s.ensureModuleScope(ctx, callerID, roles, question.ModuleID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
	}
	return question, nil
}

func (s *QuestionService) ensureModuleScope(ctx context.Context, actorID string, roles models.RoleSet, moduleID string) error {
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

func (s *QuestionService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
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
