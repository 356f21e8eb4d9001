package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
	"github.com/noah-isme/irshad-lms-api/pkg/export"
)

// ExportFormat selects the output encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportEnrollmentRepository interface {
	ListByModule(ctx context.Context, moduleID string, limit int) ([]models.EnrollmentDetail, error)
}

type exportAttendanceRepository interface {
	SummaryByModule(ctx context.Context, moduleID string) ([]models.AttendanceSummary, error)
}

// ExportResult carries rendered bytes plus the metadata handlers need to set
// download headers.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders module rosters and attendance summaries as CSV or
// PDF downloads. Exports can be disabled entirely via configuration.
type ExportService struct {
	enrollments exportEnrollmentRepository
	attendance  exportAttendanceRepository
	modules     moduleReader
	assignments teacherAssignments
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	enabled     bool
	maxRows     int
	logger      *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(enrollments exportEnrollmentRepository, attendance exportAttendanceRepository, modules moduleReader, assignments teacherAssignments, enabled bool, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &ExportService{
		enrollments: enrollments,
		attendance:  attendance,
		modules:     modules,
		assignments: assignments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		enabled:     enabled,
		maxRows:     maxRows,
		logger:      logger,
	}
}

// Roster exports the enrollment roster of a module.
func (s *ExportService) Roster(ctx context.Context, actorID string, roles models.RoleSet, moduleID string, format ExportFormat) (*ExportResult, error) {
	module, err := s.prepare(ctx, actorID, roles, moduleID, format)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.enrollments.ListByModule(ctx, moduleID, s.maxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "WhatsApp", "Status", "Joined"},
	}
	for _, enrollment := range enrollments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":  enrollment.StudentName,
			"Email":    enrollment.StudentEmail,
			"WhatsApp": enrollment.StudentWhatsApp,
			"Status":   string(enrollment.Status),
			"Joined":   enrollment.JoinedAt.Format(time.DateOnly),
		})
	}
	return s.render(dataset, "Roster "+module.Title, "roster-"+module.Slug, format)
}

// Attendance exports the per-student attendance summary of a module.
func (s *ExportService) Attendance(ctx context.Context, actorID string, roles models.RoleSet, moduleID string, format ExportFormat) (*ExportResult, error) {
	module, err := s.prepare(ctx, actorID, roles, moduleID, format)
	if err != nil {
		return nil, err
	}

	summaries, err := s.attendance.SummaryByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance summary")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Present", "Absent", "Excused"},
	}
	for _, summary := range summaries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student": summary.StudentName,
			"Present": strconv.Itoa(summary.Present),
			"Absent":  strconv.Itoa(summary.Absent),
			"Excused": strconv.Itoa(summary.Excused),
		})
	}
	return s.render(dataset, "Attendance "+module.Title, "attendance-"+module.Slug, format)
}

func (s *ExportService) prepare(ctx context.Context, actorID string, roles models.RoleSet, moduleID string, format ExportFormat) (*models.Module, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotConfigured, "exports are disabled")
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	module, err := s.modules.FindModuleByID(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
	}

	var assigned []string
	if roles.Has(models.RoleTeacher) && !roles.Has(models.RoleAdmin) && !roles.Has(models.RoleDirector) {
		ids, err := s.assignments.AssignedModuleIDs(ctx, actorID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module assignments")
		}
		assigned = ids
	}
	if !authz.CanAccessModuleAsTeacher(roles, moduleID, assigned) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "module is not assigned to you")
	}
	return module, nil
}

func (s *ExportService) render(dataset export.Dataset, title, baseName string, format ExportFormat) (*ExportResult, error) {
	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("%s.pdf", baseName),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("%s.csv", baseName),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	}
}
