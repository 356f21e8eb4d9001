package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	"github.com/noah-isme/irshad-lms-api/internal/ratelimit"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	open        map[string]bool
	created     int
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsOpen(ctx context.Context, studentID, moduleID string) (bool, error) {
	return m.open[studentID+":"+moduleID], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "e-new"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created++
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.LeftAt = leftAt
	m.enrollments[id] = e
	return nil
}

type mockModuleRepo struct {
	modules  map[string]models.Module
	teachers map[string][]models.ModuleTeacherDetail
}

func (m *mockModuleRepo) FindModuleByID(ctx context.Context, id string) (*models.Module, error) {
	if mod, ok := m.modules[id]; ok {
		return &mod, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockModuleRepo) ModuleTeachers(ctx context.Context, moduleID string) ([]models.ModuleTeacherDetail, error) {
	return m.teachers[moduleID], nil
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentService(repo *mockEnrollmentRepo, modules *mockModuleRepo, limiter *ratelimit.Limiter) (*EnrollmentService, *captureDispatcher, *captureNotifier, *captureAudit) {
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", FullName: "Fatimah", Email: "fatimah@example.com", WhatsApp: "+628", Active: true},
	}}
	dispatcher := &captureDispatcher{}
	notifier := &captureNotifier{}
	audits := &captureAudit{}
	svc := NewEnrollmentService(repo, modules, users, limiter, EnrollmentLimits{}, dispatcher, notifier, audits, validator.New(), zap.NewNop())
	return svc, dispatcher, notifier, audits
}

func publishedModule() *mockModuleRepo {
	return &mockModuleRepo{
		modules: map[string]models.Module{
			"m1": {ID: "m1", Title: "Tazkiyah Basics", Slug: "tazkiyah-basics", Published: true},
		},
		teachers: map[string][]models.ModuleTeacherDetail{
			"m1": {{UserID: "t1", FullName: "Ustadz Karim", Email: "karim@example.com"}},
		},
	}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc, dispatcher, notifier, audits := newEnrollmentService(repo, publishedModule(), ratelimit.New())

	enrollment, err := svc.Enroll(context.Background(), "s1", "m1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, 1, repo.created)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionEnrollmentSubmit, audits.logs[0].Action)

	require.Len(t, dispatcher.enrollments, 1)
	payload := dispatcher.enrollments[0]
	assert.Equal(t, "module_enrollment", payload.Event)
	assert.Equal(t, "Tazkiyah Basics", payload.Module.Title)
	assert.Equal(t, "Fatimah", payload.Student.FullName)
	assert.True(t, payload.NotifyAdmin)
	require.Len(t, payload.Teachers, 1)

	// Teachers get a direct notification, admins a role fan-out.
	require.Len(t, notifier.direct, 1)
	assert.Equal(t, []string{"t1"}, notifier.direct[0].UserIDs)
	assert.Equal(t, models.NotificationStudentEnrolled, notifier.direct[0].Kind)
	require.Len(t, notifier.byRole, 1)
	assert.Equal(t, models.RoleAdmin, notifier.byRole[0].Role)
	assert.Equal(t, models.NotificationEnrollmentSubmitted, notifier.byRole[0].Kind)
}

func TestEnrollmentServiceEnrollNoTeachers(t *testing.T) {
	modules := publishedModule()
	modules.teachers = nil
	repo := &mockEnrollmentRepo{}
	svc, dispatcher, _, _ := newEnrollmentService(repo, modules, ratelimit.New())

	_, err := svc.Enroll(context.Background(), "s1", "m1")
	require.NoError(t, err)
	require.Len(t, dispatcher.enrollments, 1)
	// The admin flag is fixed in the payload contract, not derived from
	// teacher assignments.
	assert.Equal(t, "module_enrollment", dispatcher.enrollments[0].Event)
	assert.True(t, dispatcher.enrollments[0].NotifyAdmin)
	assert.Empty(t, dispatcher.enrollments[0].Teachers)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{open: map[string]bool{"s1:m1": true}}
	svc, dispatcher, _, _ := newEnrollmentService(repo, publishedModule(), ratelimit.New())

	_, err := svc.Enroll(context.Background(), "s1", "m1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.created)
	assert.Empty(t, dispatcher.enrollments)
}

func TestEnrollmentServiceEnrollUnpublishedModuleHidden(t *testing.T) {
	modules := publishedModule()
	hidden := modules.modules["m1"]
	hidden.Published = false
	modules.modules["m1"] = hidden
	repo := &mockEnrollmentRepo{}
	svc, _, _, _ := newEnrollmentService(repo, modules, ratelimit.New())

	_, err := svc.Enroll(context.Background(), "s1", "m1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRateLimited(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
	repo := &mockEnrollmentRepo{open: map[string]bool{"s1:m1": true}}
	svc, _, _, _ := newEnrollmentService(repo, publishedModule(), limiter)

	// Duplicates are rejected, but every attempt burns budget.
	for i := 0; i < 10; i++ {
		_, err := svc.Enroll(context.Background(), "s1", "m1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	}
	_, err := svc.Enroll(context.Background(), "s1", "m1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErrors.FromError(err).Code)

	now = now.Add(time.Minute + time.Second)
	_, err = svc.Enroll(context.Background(), "s1", "m1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDecide(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ModuleID: "m1", Status: models.EnrollmentStatusPending},
	}}
	svc, _, notifier, audits := newEnrollmentService(repo, publishedModule(), ratelimit.New())

	approved, err := svc.Decide(context.Background(), "a1", "e1", true)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, approved.Status)
	require.Len(t, notifier.direct, 1)
	assert.Equal(t, models.NotificationEnrollmentApproved, notifier.direct[0].Kind)
	require.Len(t, audits.logs, 1)

	// Deciding twice is a conflict.
	_, err = svc.Decide(context.Background(), "a1", "e1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDecideReject(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ModuleID: "m1", Status: models.EnrollmentStatusPending},
	}}
	svc, _, notifier, _ := newEnrollmentService(repo, publishedModule(), ratelimit.New())

	rejected, err := svc.Decide(context.Background(), "a1", "e1", false)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, rejected.Status)
	assert.NotNil(t, rejected.LeftAt)
	require.Len(t, notifier.direct, 1)
	assert.Equal(t, models.NotificationEnrollmentRejected, notifier.direct[0].Kind)
}

func TestEnrollmentServiceUpdateStatus(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ModuleID: "m1", Status: models.EnrollmentStatusActive},
	}}
	svc, _, _, _ := newEnrollmentService(repo, publishedModule(), ratelimit.New())

	completed, err := svc.UpdateStatus(context.Background(), "a1", "e1", models.EnrollmentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, completed.Status)

	_, err = svc.UpdateStatus(context.Background(), "a1", "e1", models.EnrollmentStatusPending)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
