package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
	"github.com/noah-isme/irshad-lms-api/pkg/slug"
)

type pathRepository interface {
	List(ctx context.Context, filter models.PathFilter) ([]models.Path, int, error)
	FindByID(ctx context.Context, id string) (*models.Path, error)
	FindBySlug(ctx context.Context, slug string) (*models.Path, error)
	Create(ctx context.Context, path *models.Path) error
	Update(ctx context.Context, path *models.Path) error
	Delete(ctx context.Context, id string) error
	ListModules(ctx context.Context, pathID string) ([]models.Module, error)
	FindModuleByID(ctx context.Context, id string) (*models.Module, error)
	CreateModule(ctx context.Context, module *models.Module) error
	UpdateModule(ctx context.Context, module *models.Module) error
	AssignTeacher(ctx context.Context, moduleID, userID string) error
	UnassignTeacher(ctx context.Context, moduleID, userID string) error
	ModuleTeachers(ctx context.Context, moduleID string) ([]models.ModuleTeacherDetail, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type notifier interface {
	NotifyUsers(ctx context.Context, userIDs []string, kind models.NotificationType, title, body string, metadata interface{})
	NotifyRole(ctx context.Context, role models.Role, kind models.NotificationType, title, body string, metadata interface{})
}

const catalogCachePrefix = "catalog:"

// PathService manages the learning catalog: paths, their modules and teacher
// assignments. Published listings are cached; any mutation invalidates the
// whole catalog prefix.
type PathService struct {
	repo      pathRepository
	cache     catalogCache
	audits    auditWriter
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewPathService constructs the service.
func NewPathService(repo pathRepository, cache catalogCache, audits auditWriter, notifier notifier, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *PathService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &PathService{
		repo:      repo,
		cache:     cache,
		audits:    audits,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// PathListRequest describes filters for listing paths.
type PathListRequest struct {
	PublishedOnly bool
	Search        string
	Page          int
	PageSize      int
}

// SavePathRequest describes create and update payloads for a path.
type SavePathRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

// SaveModuleRequest describes create and update payloads for a module.
type SaveModuleRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Position    int    `json:"position" validate:"min=0"`
	Published   bool   `json:"published"`
}

type cachedPathList struct {
	Paths      []models.Path      `json:"paths"`
	Pagination *models.Pagination `json:"pagination"`
}

// ListPaths returns paths with pagination. The published-only view served to
// students is cached.
func (s *PathService) ListPaths(ctx context.Context, req PathListRequest) ([]models.Path, *models.Pagination, error) {
	filter := models.PathFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.PublishedOnly {
		published := true
		filter.Published = &published
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	cacheKey := ""
	if s.cache != nil && req.PublishedOnly && req.Search == "" {
		cacheKey = fmt.Sprintf("%spaths:p%d:s%d", catalogCachePrefix, filter.Page, filter.PageSize)
		var cached cachedPathList
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached.Paths, cached.Pagination, nil
		}
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list paths")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, cachedPathList{Paths: rows, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache path listing", zap.Error(err))
		}
	}
	return rows, pagination, nil
}

// GetPathBySlug returns a path by its slug. Unpublished paths are hidden from
// callers without the management view.
func (s *PathService) GetPathBySlug(ctx context.Context, slugValue string, includeUnpublished bool) (*models.Path, error) {
	path, err := s.repo.FindBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "path not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load path")
	}
	if !path.Published && !includeUnpublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "path not found")
	}
	return path, nil
}

// GetPath returns a path by id.
func (s *PathService) GetPath(ctx context.Context, id string) (*models.Path, error) {
	path, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "path not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load path")
	}
	return path, nil
}

// CreatePath registers a new path. The slug is derived from the title and must
// be unique.
func (s *PathService) CreatePath(ctx context.Context, actorID string, req SavePathRequest) (*models.Path, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	slugValue := slug.Make(req.Title)
	if slugValue == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must contain at least one word")
	}
	if err := s.ensureSlugFree(ctx, slugValue); err != nil {
		return nil, err
	}

	path := &models.Path{
		Slug:        slugValue,
		Title:       req.Title,
		Description: req.Description,
		Published:   req.Published,
		CreatedBy:   actorID,
	}
	if err := s.repo.Create(ctx, path); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create path")
	}

	s.invalidateCatalog(ctx)
	s.audit(ctx, actorID, models.AuditActionPathCreate, "path", path.ID, "path created: "+path.Title)
	return path, nil
}

// UpdatePath rewrites a path's mutable fields. A changed title re-derives the
// slug.
func (s *PathService) UpdatePath(ctx context.Context, actorID, id string, req SavePathRequest) (*models.Path, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	path, err := s.GetPath(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	newSlug := slug.Make(req.Title)
	if newSlug == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must contain at least one word")
	}
	if newSlug != path.Slug {
		if err := s.ensureSlugFree(ctx, newSlug); err != nil {
			return nil, err
		}
	}

	path.Slug = newSlug
	path.Title = req.Title
	path.Description = req.Description
	path.Published = req.Published
	if err := s.repo.Update(ctx, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "path not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update path")
	}

	s.invalidateCatalog(ctx)
	s.audit(ctx, actorID, models.AuditActionPathUpdate, "path", path.ID, "path updated: "+path.Title)
	return path, nil
}

// DeletePath removes a path.
func (s *PathService) DeletePath(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "path not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete path")
	}
	s.invalidateCatalog(ctx)
	s.audit(ctx, actorID, models.AuditActionPathDelete, "path", id, "path deleted")
	return nil
}

// ListModules returns a path's modules ordered by position. Unpublished
// modules are filtered for callers without the management view.
func (s *PathService) ListModules(ctx context.Context, pathID string, includeUnpublished bool) ([]models.Module, error) {
	if _, err := s.GetPath(ctx, pathID); err != nil {
		return nil, err
	}
	modules, err := s.repo.ListModules(ctx, pathID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	if includeUnpublished {
		return modules, nil
	}
	visible := modules[:0]
	for _, m := range modules {
		if m.Published {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// GetModule returns a module by id.
func (s *PathService) GetModule(ctx context.Context, id string) (*models.Module, error) {
	module, err := s.repo.FindModuleByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

// CreateModule registers a module inside a path.
func (s *PathService) CreateModule(ctx context.Context, actorID, pathID string, req SaveModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.GetPath(ctx, pathID); err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	slugValue := slug.Make(req.Title)
	if slugValue == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must contain at least one word")
	}

	module := &models.Module{
		PathID:      pathID,
		Slug:        slugValue,
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
		Published:   req.Published,
	}
	if err := s.repo.CreateModule(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}

	s.invalidateCatalog(ctx)
	s.audit(ctx, actorID, models.AuditActionModuleCreate, "module", module.ID, "module created: "+module.Title)
	return module, nil
}

// UpdateModule rewrites a module's mutable fields.
func (s *PathService) UpdateModule(ctx context.Context, actorID, id string, req SaveModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	module, err := s.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	slugValue := slug.Make(req.Title)
	if slugValue == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must contain at least one word")
	}

	module.Slug = slugValue
	module.Title = req.Title
	module.Description = req.Description
	module.Position = req.Position
	module.Published = req.Published
	if err := s.repo.UpdateModule(ctx, module); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module")
	}

	s.invalidateCatalog(ctx)
	s.audit(ctx, actorID, models.AuditActionModuleUpdate, "module", module.ID, "module updated: "+module.Title)
	return module, nil
}

// AssignTeacher links a teacher to a module and notifies them.
func (s *PathService) AssignTeacher(ctx context.Context, actorID, moduleID, teacherID string) error {
	module, err := s.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}
	if err := s.repo.AssignTeacher(ctx, moduleID, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}

	s.audit(ctx, actorID, models.AuditActionTeacherAssign, "module", moduleID, "teacher assigned")
	if s.notifier != nil {
		s.notifier.NotifyUsers(ctx, []string{teacherID}, models.NotificationModuleAssigned,
			"Module assigned", "You were assigned to teach "+module.Title,
			map[string]string{"module_id": module.ID})
	}
	return nil
}

// UnassignTeacher removes a teacher from a module and notifies them.
func (s *PathService) UnassignTeacher(ctx context.Context, actorID, moduleID, teacherID string) error {
	module, err := s.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}
	if err := s.repo.UnassignTeacher(ctx, moduleID, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign teacher")
	}

	s.audit(ctx, actorID, models.AuditActionTeacherUnassign, "module", moduleID, "teacher unassigned")
	if s.notifier != nil {
		s.notifier.NotifyUsers(ctx, []string{teacherID}, models.NotificationModuleUnassigned,
			"Module unassigned", "You are no longer assigned to "+module.Title,
			map[string]string{"module_id": module.ID})
	}
	return nil
}

// ModuleTeachers returns the teachers assigned to a module.
func (s *PathService) ModuleTeachers(ctx context.Context, moduleID string) ([]models.ModuleTeacherDetail, error) {
	if _, err := s.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	teachers, err := s.repo.ModuleTeachers(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list module teachers")
	}
	return teachers, nil
}

func (s *PathService) ensureSlugFree(ctx context.Context, slugValue string) error {
	existing, err := s.repo.FindBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug")
	}
	if existing != nil {
		return appErrors.Clone(appErrors.ErrConflict, "a path with this title already exists")
	}
	return nil
}

func (s *PathService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *PathService) audit(ctx context.Context, actorID, action, resource, resourceID, description string) {
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
