package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "whatsapp", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "fatimah@example.com", "hash", "Fatimah", "+62811", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, whatsapp, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("fatimah@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "fatimah@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Fatimah", user.FullName)
	assert.True(t, user.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRoles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"role"}).
		AddRow(string(models.RoleStudent)).
		AddRow(string(models.RoleTeacher))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role")).
		WithArgs("u1").
		WillReturnRows(rows)

	roles, err := repo.Roles(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, roles.Has(models.RoleTeacher))
	assert.False(t, roles.Has(models.RoleAdmin))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGrantRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, role) DO NOTHING")).
		WithArgs("u1", models.RoleTeacher, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.GrantRole(context.Background(), "u1", models.RoleTeacher))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryAssignedModuleIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"module_id"}).AddRow("m1").AddRow("m2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT module_id FROM module_teachers WHERE user_id = $1 ORDER BY module_id")).
		WithArgs("t1").
		WillReturnRows(rows)

	ids, err := repo.AssignedModuleIDs(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	revokedAt := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1")).
		WithArgs("rt1", revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt1", revokedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}
