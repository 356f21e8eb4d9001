package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type mockExportEnrollmentRepo struct {
	details []models.EnrollmentDetail
}

func (m *mockExportEnrollmentRepo) ListByModule(ctx context.Context, moduleID string, limit int) ([]models.EnrollmentDetail, error) {
	if limit < len(m.details) {
		return m.details[:limit], nil
	}
	return m.details, nil
}

type mockExportAttendanceRepo struct {
	summaries []models.AttendanceSummary
}

func (m *mockExportAttendanceRepo) SummaryByModule(ctx context.Context, moduleID string) ([]models.AttendanceSummary, error) {
	return m.summaries, nil
}

func newExportService(enabled bool) *ExportService {
	enrollments := &mockExportEnrollmentRepo{details: []models.EnrollmentDetail{
		{
			Enrollment:      models.Enrollment{StudentID: "s1", Status: models.EnrollmentStatusActive, JoinedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
			StudentName:     "Fatimah",
			StudentEmail:    "fatimah@example.com",
			StudentWhatsApp: "+628",
		},
	}}
	attendance := &mockExportAttendanceRepo{summaries: []models.AttendanceSummary{
		{StudentID: "s1", StudentName: "Fatimah", Present: 4, Absent: 1, Excused: 2},
	}}
	return NewExportService(enrollments, attendance, publishedModule(), &mockAssignments{byUser: map[string][]string{"t1": {"m1"}}}, enabled, 0, zap.NewNop())
}

func TestExportServiceDisabled(t *testing.T) {
	svc := newExportService(false)

	_, err := svc.Roster(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "m1", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotConfigured.Code, appErrors.FromError(err).Code)
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := newExportService(true)

	_, err := svc.Roster(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "m1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc := newExportService(true)

	result, err := svc.Roster(context.Background(), "t1", models.RoleSet{models.RoleTeacher}, "m1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster-tazkiyah-basics.csv", result.FileName)
	assert.Equal(t, "text/csv", result.ContentType)

	body := string(result.Data)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Student,Email,WhatsApp,Status,Joined", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "Fatimah")
	assert.Contains(t, lines[1], "2026-01-15")
}

func TestExportServiceAttendancePDF(t *testing.T) {
	svc := newExportService(true)

	result, err := svc.Attendance(context.Background(), "a1", models.RoleSet{models.RoleAdmin}, "m1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "attendance-tazkiyah-basics.pdf", result.FileName)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestExportServiceUnassignedTeacherForbidden(t *testing.T) {
	svc := newExportService(true)

	_, err := svc.Roster(context.Background(), "t2", models.RoleSet{models.RoleTeacher}, "m1", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
