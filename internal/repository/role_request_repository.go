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

// RoleRequestRepository handles persistence of self-service role requests.
type RoleRequestRepository struct {
	db *sqlx.DB
}

// NewRoleRequestRepository constructs the repository.
func NewRoleRequestRepository(db *sqlx.DB) *RoleRequestRepository {
	return &RoleRequestRepository{db: db}
}

// List returns role requests filtered by the provided criteria.
func (r *RoleRequestRepository) List(ctx context.Context, filter models.RoleRequestFilter) ([]models.RoleRequest, int, error) {
	baseQuery := `FROM role_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT id, user_id, role, reason, status, decided_by, decided_at, submitted_at %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d`,
		baseQuery+clause, size, offset)

	var requests []models.RoleRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list role requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count role requests: %w", err)
	}
	return requests, total, nil
}

// FindByID returns a role request by its identifier.
func (r *RoleRequestRepository) FindByID(ctx context.Context, id string) (*models.RoleRequest, error) {
	const query = `SELECT id, user_id, role, reason, status, decided_by, decided_at, submitted_at FROM role_requests WHERE id = $1`
	var request models.RoleRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ExistsPending reports whether the user already has a pending request for
// the role.
func (r *RoleRequestRepository) ExistsPending(ctx context.Context, userID string, role models.Role) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM role_requests WHERE user_id = $1 AND role = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, role, models.RoleRequestStatusPending); err != nil {
		return false, fmt.Errorf("check pending role request: %w", err)
	}
	return exists, nil
}

// Create inserts a role request row.
func (r *RoleRequestRepository) Create(ctx context.Context, request *models.RoleRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	const query = `INSERT INTO role_requests (id, user_id, role, reason, status, submitted_at)
        VALUES (:id, :user_id, :role, :reason, :status, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create role request: %w", err)
	}
	return nil
}

// Decide records the approval or rejection of a request.
func (r *RoleRequestRepository) Decide(ctx context.Context, id string, status models.RoleRequestStatus, decidedBy string, decidedAt time.Time) error {
	const query = `UPDATE role_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, status, decidedBy, decidedAt, models.RoleRequestStatusPending)
	if err != nil {
		return fmt.Errorf("decide role request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
