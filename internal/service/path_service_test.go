package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type mockPathRepo struct {
	paths    map[string]models.Path
	modules  map[string]models.Module
	teachers map[string][]models.ModuleTeacherDetail
	listed   int
}

func (m *mockPathRepo) List(ctx context.Context, filter models.PathFilter) ([]models.Path, int, error) {
	m.listed++
	var list []models.Path
	for _, p := range m.paths {
		if filter.Published != nil && p.Published != *filter.Published {
			continue
		}
		list = append(list, p)
	}
	return list, len(list), nil
}

func (m *mockPathRepo) FindByID(ctx context.Context, id string) (*models.Path, error) {
	if p, ok := m.paths[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPathRepo) FindBySlug(ctx context.Context, slugValue string) (*models.Path, error) {
	for _, p := range m.paths {
		if p.Slug == slugValue {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPathRepo) Create(ctx context.Context, path *models.Path) error {
	if m.paths == nil {
		m.paths = make(map[string]models.Path)
	}
	if path.ID == "" {
		path.ID = "p-new"
	}
	m.paths[path.ID] = *path
	return nil
}

func (m *mockPathRepo) Update(ctx context.Context, path *models.Path) error {
	if _, ok := m.paths[path.ID]; !ok {
		return sql.ErrNoRows
	}
	m.paths[path.ID] = *path
	return nil
}

func (m *mockPathRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.paths[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.paths, id)
	return nil
}

func (m *mockPathRepo) ListModules(ctx context.Context, pathID string) ([]models.Module, error) {
	var list []models.Module
	for _, mod := range m.modules {
		if mod.PathID == pathID {
			list = append(list, mod)
		}
	}
	return list, nil
}

func (m *mockPathRepo) FindModuleByID(ctx context.Context, id string) (*models.Module, error) {
	if mod, ok := m.modules[id]; ok {
		return &mod, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPathRepo) CreateModule(ctx context.Context, module *models.Module) error {
	if m.modules == nil {
		m.modules = make(map[string]models.Module)
	}
	if module.ID == "" {
		module.ID = "m-new"
	}
	m.modules[module.ID] = *module
	return nil
}

func (m *mockPathRepo) UpdateModule(ctx context.Context, module *models.Module) error {
	if _, ok := m.modules[module.ID]; !ok {
		return sql.ErrNoRows
	}
	m.modules[module.ID] = *module
	return nil
}

func (m *mockPathRepo) AssignTeacher(ctx context.Context, moduleID, userID string) error {
	if m.teachers == nil {
		m.teachers = make(map[string][]models.ModuleTeacherDetail)
	}
	m.teachers[moduleID] = append(m.teachers[moduleID], models.ModuleTeacherDetail{UserID: userID})
	return nil
}

func (m *mockPathRepo) UnassignTeacher(ctx context.Context, moduleID, userID string) error {
	kept := m.teachers[moduleID][:0]
	for _, t := range m.teachers[moduleID] {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	m.teachers[moduleID] = kept
	return nil
}

func (m *mockPathRepo) ModuleTeachers(ctx context.Context, moduleID string) ([]models.ModuleTeacherDetail, error) {
	return m.teachers[moduleID], nil
}

// memoryCatalogCache is a map-backed stand-in for the Redis cache.
type memoryCatalogCache struct {
	entries map[string][]byte
	deletes []string
}

func (c *memoryCatalogCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCatalogCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCatalogCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletes = append(c.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func newPathService(repo *mockPathRepo, cache *memoryCatalogCache) (*PathService, *captureNotifier, *captureAudit) {
	notifier := &captureNotifier{}
	audits := &captureAudit{}
	svc := NewPathService(repo, cache, audits, notifier, validator.New(), zap.NewNop(), time.Minute)
	return svc, notifier, audits
}

func TestPathServiceCreatePathDerivesSlug(t *testing.T) {
	repo := &mockPathRepo{}
	svc, _, audits := newPathService(repo, &memoryCatalogCache{})

	path, err := svc.CreatePath(context.Background(), "a1", SavePathRequest{Title: "  The Purification Path  "})
	require.NoError(t, err)
	assert.Equal(t, "the-purification-path", path.Slug)
	assert.Equal(t, "The Purification Path", path.Title)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionPathCreate, audits.logs[0].Action)
}

func TestPathServiceCreatePathDuplicateSlug(t *testing.T) {
	repo := &mockPathRepo{paths: map[string]models.Path{
		"p1": {ID: "p1", Slug: "tazkiyah", Title: "Tazkiyah"},
	}}
	svc, _, _ := newPathService(repo, &memoryCatalogCache{})

	_, err := svc.CreatePath(context.Background(), "a1", SavePathRequest{Title: "Tazkiyah"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPathServiceCreatePathEmptySlug(t *testing.T) {
	svc, _, _ := newPathService(&mockPathRepo{}, &memoryCatalogCache{})

	_, err := svc.CreatePath(context.Background(), "a1", SavePathRequest{Title: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPathServiceListPathsCachesPublishedView(t *testing.T) {
	repo := &mockPathRepo{paths: map[string]models.Path{
		"p1": {ID: "p1", Slug: "tazkiyah", Title: "Tazkiyah", Published: true},
	}}
	cache := &memoryCatalogCache{}
	svc, _, _ := newPathService(repo, cache)

	_, _, err := svc.ListPaths(context.Background(), PathListRequest{PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listed)

	// The second call is served from cache.
	paths, _, err := svc.ListPaths(context.Background(), PathListRequest{PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listed)
	assert.Len(t, paths, 1)

	// Searches and admin views bypass the cache.
	_, _, err = svc.ListPaths(context.Background(), PathListRequest{PublishedOnly: true, Search: "taz"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listed)
}

func TestPathServiceMutationInvalidatesCatalog(t *testing.T) {
	repo := &mockPathRepo{paths: map[string]models.Path{
		"p1": {ID: "p1", Slug: "tazkiyah", Title: "Tazkiyah", Published: true},
	}}
	cache := &memoryCatalogCache{}
	svc, _, _ := newPathService(repo, cache)

	_, _, err := svc.ListPaths(context.Background(), PathListRequest{PublishedOnly: true})
	require.NoError(t, err)
	assert.NotEmpty(t, cache.entries)

	_, err = svc.UpdatePath(context.Background(), "a1", "p1", SavePathRequest{Title: "Tazkiyah", Published: false})
	require.NoError(t, err)
	assert.Empty(t, cache.entries)
	assert.Contains(t, cache.deletes, "catalog:*")
}

func TestPathServiceGetPathBySlugHidesUnpublished(t *testing.T) {
	repo := &mockPathRepo{paths: map[string]models.Path{
		"p1": {ID: "p1", Slug: "draft-path", Title: "Draft", Published: false},
	}}
	svc, _, _ := newPathService(repo, &memoryCatalogCache{})

	_, err := svc.GetPathBySlug(context.Background(), "draft-path", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	path, err := svc.GetPathBySlug(context.Background(), "draft-path", true)
	require.NoError(t, err)
	assert.Equal(t, "p1", path.ID)
}

func TestPathServiceListModulesFiltersUnpublished(t *testing.T) {
	repo := &mockPathRepo{
		paths: map[string]models.Path{"p1": {ID: "p1", Slug: "tazkiyah", Published: true}},
		modules: map[string]models.Module{
			"m1": {ID: "m1", PathID: "p1", Slug: "basics", Published: true},
			"m2": {ID: "m2", PathID: "p1", Slug: "drafts", Published: false},
		},
	}
	svc, _, _ := newPathService(repo, &memoryCatalogCache{})

	visible, err := svc.ListModules(context.Background(), "p1", false)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := svc.ListModules(context.Background(), "p1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPathServiceAssignTeacherNotifies(t *testing.T) {
	repo := &mockPathRepo{modules: map[string]models.Module{
		"m1": {ID: "m1", PathID: "p1", Slug: "basics", Title: "Basics", Published: true},
	}}
	svc, notifier, audits := newPathService(repo, &memoryCatalogCache{})

	err := svc.AssignTeacher(context.Background(), "a1", "m1", "t1")
	require.NoError(t, err)
	require.Len(t, notifier.direct, 1)
	assert.Equal(t, []string{"t1"}, notifier.direct[0].UserIDs)
	assert.Equal(t, models.NotificationModuleAssigned, notifier.direct[0].Kind)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionTeacherAssign, audits.logs[0].Action)

	err = svc.UnassignTeacher(context.Background(), "a1", "m1", "t1")
	require.NoError(t, err)
	require.Len(t, notifier.direct, 2)
	assert.Equal(t, models.NotificationModuleUnassigned, notifier.direct[1].Kind)
	assert.Empty(t, repo.teachers["m1"])
}
