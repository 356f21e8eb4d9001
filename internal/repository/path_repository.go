package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

// PathRepository handles persistence of learning paths, modules and teacher
// assignments.
type PathRepository struct {
	db *sqlx.DB
}

// NewPathRepository constructs the repository.
func NewPathRepository(db *sqlx.DB) *PathRepository {
	return &PathRepository{db: db}
}

// List returns paths filtered by the provided criteria.
func (r *PathRepository) List(ctx context.Context, filter models.PathFilter) ([]models.Path, int, error) {
	baseQuery := `FROM paths WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Published != nil {
		conditions = append(conditions, fmt.Sprintf("published = $%d", len(args)+1))
		args = append(args, *filter.Published)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, slug, title, description, published, created_by, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		baseQuery+clause, size, offset)

	var paths []models.Path
	if err := r.db.SelectContext(ctx, &paths, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list paths: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count paths: %w", err)
	}
	return paths, total, nil
}

// FindByID returns a path by its identifier.
func (r *PathRepository) FindByID(ctx context.Context, id string) (*models.Path, error) {
	const query = `SELECT id, slug, title, description, published, created_by, created_at, updated_at FROM paths WHERE id = $1`
	var path models.Path
	if err := r.db.GetContext(ctx, &path, query, id); err != nil {
		return nil, err
	}
	return &path, nil
}

// FindBySlug returns a path by its slug.
func (r *PathRepository) FindBySlug(ctx context.Context, slug string) (*models.Path, error) {
	const query = `SELECT id, slug, title, description, published, created_by, created_at, updated_at FROM paths WHERE slug = $1`
	var path models.Path
	if err := r.db.GetContext(ctx, &path, query, slug); err != nil {
		return nil, err
	}
	return &path, nil
}

// Create inserts a path row.
func (r *PathRepository) Create(ctx context.Context, path *models.Path) error {
	if path.ID == "" {
		path.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	path.CreatedAt = now
	path.UpdatedAt = now
	const query = `INSERT INTO paths (id, slug, title, description, published, created_by, created_at, updated_at)
        VALUES (:id, :slug, :title, :description, :published, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, path); err != nil {
		return fmt.Errorf("create path: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a path.
func (r *PathRepository) Update(ctx context.Context, path *models.Path) error {
	path.UpdatedAt = time.Now().UTC()
	const query = `UPDATE paths SET slug = :slug, title = :title, description = :description, published = :published, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, path)
	if err != nil {
		return fmt.Errorf("update path: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a path row.
func (r *PathRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM paths WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete path: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListModules returns the modules of a path ordered by position.
func (r *PathRepository) ListModules(ctx context.Context, pathID string) ([]models.Module, error) {
	const query = `SELECT id, path_id, slug, title, description, position, published, created_at, updated_at FROM modules WHERE path_id = $1 ORDER BY position, created_at`
	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, query, pathID); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// FindModuleByID returns a module by its identifier.
func (r *PathRepository) FindModuleByID(ctx context.Context, id string) (*models.Module, error) {
	const query = `SELECT id, path_id, slug, title, description, position, published, created_at, updated_at FROM modules WHERE id = $1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		return nil, err
	}
	return &module, nil
}

// CreateModule inserts a module row.
func (r *PathRepository) CreateModule(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now
	const query = `INSERT INTO modules (id, path_id, slug, title, description, position, published, created_at, updated_at)
        VALUES (:id, :path_id, :slug, :title, :description, :position, :published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// UpdateModule rewrites the mutable fields of a module.
func (r *PathRepository) UpdateModule(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modules SET slug = :slug, title = :title, description = :description, position = :position, published = :published, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, module)
	if err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignTeacher links a teacher to a module. Re-assigning is a no-op.
func (r *PathRepository) AssignTeacher(ctx context.Context, moduleID, userID string) error {
	const query = `INSERT INTO module_teachers (module_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (module_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, moduleID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign teacher: %w", err)
	}
	return nil
}

// UnassignTeacher removes a teacher from a module.
func (r *PathRepository) UnassignTeacher(ctx context.Context, moduleID, userID string) error {
	const query = `DELETE FROM module_teachers WHERE module_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, moduleID, userID); err != nil {
		return fmt.Errorf("unassign teacher: %w", err)
	}
	return nil
}

// ModuleTeachers returns the teachers assigned to a module with contact info.
func (r *PathRepository) ModuleTeachers(ctx context.Context, moduleID string) ([]models.ModuleTeacherDetail, error) {
	const query = `SELECT mt.user_id, u.full_name, u.email
        FROM module_teachers mt
        JOIN users u ON u.id = mt.user_id
        WHERE mt.module_id = $1 ORDER BY u.full_name`
	var teachers []models.ModuleTeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, moduleID); err != nil {
		return nil, fmt.Errorf("list module teachers: %w", err)
	}
	return teachers, nil
}
