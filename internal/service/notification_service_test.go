package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/irshad-lms-api/internal/models"
)

type mockNotificationRepo struct {
	notifications []models.Notification
	read          []string
	allRead       []string
	batchErr      error
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var list []models.Notification
	for _, n := range m.notifications {
		if n.UserID == filter.UserID {
			list = append(list, n)
		}
	}
	return list, len(list), nil
}

func (m *mockNotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	m.notifications = append(m.notifications, notifications...)
	return nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	m.read = append(m.read, userID+":"+id)
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	m.allRead = append(m.allRead, userID)
	return nil
}

type mockRoleDirectory struct {
	byRole map[models.Role][]string
}

func (m *mockRoleDirectory) IDsWithRole(ctx context.Context, role models.Role) ([]string, error) {
	return m.byRole[role], nil
}

func TestNotificationServiceNotifyUsers(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, &mockRoleDirectory{}, zap.NewNop())

	svc.NotifyUsers(context.Background(), []string{"u1", "u2"}, models.NotificationAnnouncement,
		"Hello", "body", map[string]string{"announcement_id": "ann-1"})

	require.Len(t, repo.notifications, 2)
	assert.Equal(t, "u1", repo.notifications[0].UserID)
	assert.Equal(t, models.NotificationAnnouncement, repo.notifications[0].Type)
	assert.JSONEq(t, `{"announcement_id":"ann-1"}`, string(repo.notifications[0].Metadata))
}

func TestNotificationServiceNotifyUsersUnknownTypeDropped(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, &mockRoleDirectory{}, zap.NewNop())

	svc.NotifyUsers(context.Background(), []string{"u1"}, models.NotificationType("carrier.pigeon"), "Hello", "", nil)

	assert.Empty(t, repo.notifications)
}

func TestNotificationServiceNotifyUsersBatchFailureSwallowed(t *testing.T) {
	repo := &mockNotificationRepo{batchErr: errors.New("db down")}
	svc := NewNotificationService(repo, &mockRoleDirectory{}, zap.NewNop())

	// Must not panic or surface the error.
	svc.NotifyUsers(context.Background(), []string{"u1"}, models.NotificationAnnouncement, "Hello", "", nil)
}

func TestNotificationServiceNotifyRole(t *testing.T) {
	repo := &mockNotificationRepo{}
	directory := &mockRoleDirectory{byRole: map[models.Role][]string{
		models.RoleDirector: {"d1", "d2"},
	}}
	svc := NewNotificationService(repo, directory, zap.NewNop())

	svc.NotifyRole(context.Background(), models.RoleDirector, models.NotificationBayatSubmitted, "New bayat request", "", nil)

	require.Len(t, repo.notifications, 2)
	assert.Equal(t, "d1", repo.notifications[0].UserID)
	assert.Equal(t, "d2", repo.notifications[1].UserID)
}

func TestNotificationServiceNotifyRoleNoHolders(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, &mockRoleDirectory{}, zap.NewNop())

	svc.NotifyRole(context.Background(), models.RoleAdmin, models.NotificationEnrollmentSubmitted, "New enrollment", "", nil)

	assert.Empty(t, repo.notifications)
}

func TestNotificationServiceListAndUnread(t *testing.T) {
	repo := &mockNotificationRepo{notifications: []models.Notification{
		{ID: "n1", UserID: "u1", Type: models.NotificationAnnouncement},
		{ID: "n2", UserID: "u1", Type: models.NotificationAnnouncement},
		{ID: "n3", UserID: "u2", Type: models.NotificationAnnouncement},
	}}
	svc := NewNotificationService(repo, &mockRoleDirectory{}, zap.NewNop())

	rows, pagination, err := svc.List(context.Background(), NotificationListRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, pagination.TotalCount)

	count, err := svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkRead(context.Background(), "n1", "u1"))
	assert.Equal(t, []string{"u1:n1"}, repo.read)

	require.NoError(t, svc.MarkAllRead(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, repo.allRead)
}
