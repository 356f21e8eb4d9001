package service

import (
	"context"
	"database/sql"
	"sync"
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

type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]models.GuidanceRequest
	created  int
}

func (m *mockRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.GuidanceRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.GuidanceRequest
	for _, r := range m.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		list = append(list, r)
	}
	return list, len(list), nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.GuidanceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.GuidanceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests == nil {
		m.requests = make(map[string]models.GuidanceRequest)
	}
	if request.ID == "" {
		request.ID = "req-1"
	}
	m.requests[request.ID] = *request
	m.created++
	return nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

func newRequestService(repo *mockRequestRepo, limiter *ratelimit.Limiter) (*RequestService, *captureDispatcher, *captureNotifier, *captureAudit) {
	dispatcher := &captureDispatcher{}
	notifier := &captureNotifier{}
	audits := &captureAudit{}
	svc := NewRequestService(repo, limiter, RequestLimits{}, dispatcher, notifier, audits, validator.New(), zap.NewNop())
	return svc, dispatcher, notifier, audits
}

func TestRequestServiceSubmitBayat(t *testing.T) {
	repo := &mockRequestRepo{}
	svc, dispatcher, notifier, audits := newRequestService(repo, ratelimit.New())

	request, err := svc.Submit(context.Background(), "u1", SubmitRequestRequest{
		Type:     "bayat",
		FullName: "  Ali Hasan  ",
		WhatsApp: "+628123456789",
		Country:  "Indonesia",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, "Ali Hasan", request.FullName)
	assert.Equal(t, 1, repo.created)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionRequestSubmit, audits.logs[0].Action)

	require.Len(t, dispatcher.requests, 1)
	assert.Equal(t, models.RequestTypeBayat, dispatcher.requests[0].Type)
	assert.Equal(t, "Ali Hasan", dispatcher.requests[0].FullName)

	require.Len(t, notifier.byRole, 1)
	assert.Equal(t, models.RoleDirector, notifier.byRole[0].Role)
	assert.Equal(t, models.NotificationBayatSubmitted, notifier.byRole[0].Kind)
}

func TestRequestServiceSubmitUnknownType(t *testing.T) {
	repo := &mockRequestRepo{}
	svc, dispatcher, _, _ := newRequestService(repo, ratelimit.New())

	_, err := svc.Submit(context.Background(), "u1", SubmitRequestRequest{
		Type:     "mentoring",
		FullName: "Ali",
		WhatsApp: "+628",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.created)
	assert.Empty(t, dispatcher.requests)
}

func TestRequestServiceSubmitRateLimited(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
	repo := &mockRequestRepo{}
	svc, dispatcher, _, audits := newRequestService(repo, limiter)

	payload := SubmitRequestRequest{Type: "bayat", FullName: "Ali", WhatsApp: "+628"}
	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), "u1", payload)
		require.NoError(t, err)
	}

	_, err := svc.Submit(context.Background(), "u1", payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErrors.FromError(err).Code)

	// The denied attempt wrote nothing.
	assert.Equal(t, 3, repo.created)
	assert.Len(t, dispatcher.requests, 3)
	assert.Len(t, audits.logs, 3)

	// Another user is unaffected.
	_, err = svc.Submit(context.Background(), "u2", payload)
	require.NoError(t, err)

	// The window reset restores the budget.
	now = now.Add(time.Hour + time.Second)
	_, err = svc.Submit(context.Background(), "u1", payload)
	require.NoError(t, err)
}

func TestRequestServiceGuidanceLimitIsSeparate(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
	repo := &mockRequestRepo{}
	svc, _, _, _ := newRequestService(repo, limiter)

	bayat := SubmitRequestRequest{Type: "bayat", FullName: "Ali", WhatsApp: "+628"}
	guidance := SubmitRequestRequest{Type: "guidance", FullName: "Ali", WhatsApp: "+628"}

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), "u1", bayat)
		require.NoError(t, err)
	}
	_, err := svc.Submit(context.Background(), "u1", bayat)
	require.Error(t, err)

	// Guidance budget is untouched by bayat submissions.
	for i := 0; i < 5; i++ {
		_, err := svc.Submit(context.Background(), "u1", guidance)
		require.NoError(t, err)
	}
	_, err = svc.Submit(context.Background(), "u1", guidance)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceUpdateStatus(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.GuidanceRequest{
		"r1": {ID: "r1", UserID: "u1", Type: models.RequestTypeGuidance, Status: models.RequestStatusPending},
	}}
	svc, _, _, audits := newRequestService(repo, ratelimit.New())

	updated, err := svc.UpdateStatus(context.Background(), "director-1", "r1", models.RequestStatusResponded)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusResponded, updated.Status)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionRequestUpdate, audits.logs[0].Action)

	_, err = svc.UpdateStatus(context.Background(), "director-1", "r1", models.RequestStatus("archived"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceGetScopedToOwner(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.GuidanceRequest{
		"r1": {ID: "r1", UserID: "u1", Type: models.RequestTypeBayat, Status: models.RequestStatusPending},
	}}
	svc, _, _, _ := newRequestService(repo, ratelimit.New())

	_, err := svc.Get(context.Background(), "r1", "u1", false)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "r1", "u2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "r1", "director-1", true)
	require.NoError(t, err)
}
