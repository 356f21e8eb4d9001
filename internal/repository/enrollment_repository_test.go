package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

func TestEnrollmentRepositoryExistsOpen(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND module_id = $2 AND status IN ($3, $4))")).
		WithArgs("s1", "m1", models.EnrollmentStatusPending, models.EnrollmentStatusActive).
		WillReturnRows(rows)

	exists, err := repo.ExistsOpen(context.Background(), "s1", "m1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{
		StudentID: "s1",
		ModuleID:  "m1",
		Status:    models.EnrollmentStatusPending,
		JoinedAt:  time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1")).
		WithArgs("missing", models.EnrollmentStatusActive, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.EnrollmentStatusActive, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByModule(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "module_id", "status", "joined_at", "left_at", "student_name", "student_email", "student_whatsapp", "module_title", "module_slug"}).
		AddRow("e1", "s1", "m1", models.EnrollmentStatusActive, now, nil, "Fatimah", "fatimah@example.com", "+62811", "Tazkiyah Basics", "tazkiyah-basics")
	mock.ExpectQuery("SELECT e.id, e.student_id, e.module_id, e.status, e.joined_at, e.left_at").
		WithArgs("m1", 50).
		WillReturnRows(rows)

	enrollments, err := repo.ListByModule(context.Background(), "m1", 50)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "Fatimah", enrollments[0].StudentName)
	assert.Equal(t, "tazkiyah-basics", enrollments[0].ModuleSlug)
	require.NoError(t, mock.ExpectationsWereMet())
}
