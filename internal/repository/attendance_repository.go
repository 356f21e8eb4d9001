package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

// AttendanceRepository handles persistence of session attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListBySession returns the marks recorded for a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, session_id, student_id, status, marked_by, marked_at FROM attendance_records WHERE session_id = $1 ORDER BY marked_at`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Upsert records a mark, overwriting an earlier mark for the same student and
// session.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendance_records (id, session_id, student_id, status, marked_by, marked_at)
        VALUES (:id, :session_id, :student_id, :status, :marked_by, :marked_at)
        ON CONFLICT (session_id, student_id) DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// SummaryByModule aggregates marks per student across a module's sessions.
func (r *AttendanceRepository) SummaryByModule(ctx context.Context, moduleID string) ([]models.AttendanceSummary, error) {
	const query = `SELECT a.student_id, u.full_name AS student_name,
        COUNT(*) FILTER (WHERE a.status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE a.status = 'ABSENT') AS absent,
        COUNT(*) FILTER (WHERE a.status = 'EXCUSED') AS excused
        FROM attendance_records a
        JOIN sessions s ON s.id = a.session_id
        JOIN users u ON u.id = a.student_id
        WHERE s.module_id = $1
        GROUP BY a.student_id, u.full_name
        ORDER BY u.full_name`
	var summaries []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, moduleID); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return summaries, nil
}
