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
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users   map[string]models.User
	roles   map[string]models.RoleSet
	tokens  map[string]models.RefreshToken
	revoked int
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) Roles(ctx context.Context, userID string) (models.RoleSet, error) {
	return m.roles[userID], nil
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *mockAuthUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for k, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			m.tokens[k] = t
			m.revoked++
		}
	}
	return nil
}

func (m *mockAuthUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]models.RefreshToken)
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockAuthUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for k, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			m.tokens[k] = t
			m.revoked++
			return nil
		}
	}
	return sql.ErrNoRows
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(repo *mockAuthUserRepo) (*AuthService, *captureAudit) {
	audits := &captureAudit{}
	svc := NewAuthService(repo, audits, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "irshad-lms-test",
	})
	return svc, audits
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "ali@example.com", FullName: "Ali", PasswordHash: hashPassword(t, "secret123"), Active: true},
		},
		roles: map[string]models.RoleSet{
			"u1": {models.RoleStudent, models.RoleTeacher},
		},
	}
	svc, audits := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ali@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.ElementsMatch(t, models.RoleSet{models.RoleStudent, models.RoleTeacher}, resp.User.Roles)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audits.logs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "ali@example.com", PasswordHash: hashPassword(t, "secret123"), Active: true},
		},
	}
	svc, _ := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ali@example.com", Password: "wrong-pass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "ali@example.com", PasswordHash: hashPassword(t, "secret123"), Active: false},
		},
	}
	svc, _ := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ali@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "ali@example.com", PasswordHash: hashPassword(t, "secret123"), Active: true},
		},
		tokens: map[string]models.RefreshToken{
			"old-token": {ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc, _ := newAuthService(repo)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", resp.RefreshToken)

	// The used token is revoked and cannot be replayed.
	assert.True(t, repo.tokens["old-token"].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Active: true},
		},
		tokens: map[string]models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	svc, _ := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutChecksOwnership(t *testing.T) {
	repo := &mockAuthUserRepo{
		tokens: map[string]models.RefreshToken{
			"tok": {ID: "rt1", UserID: "u1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc, audits := newAuthService(repo)

	err := svc.Logout(context.Background(), "tok", "u2", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Logout(context.Background(), "tok", "u1", models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.tokens["tok"].Revoked)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionLogout, audits.logs[0].Action)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "ali@example.com", PasswordHash: hashPassword(t, "old-secret"), Active: true},
		},
		tokens: map[string]models.RefreshToken{
			"tok": {ID: "rt1", UserID: "u1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc, audits := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "new-secret-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "old-secret",
		NewPassword: "new-secret-1",
	})
	require.NoError(t, err)

	// Existing sessions are revoked after a password change.
	assert.True(t, repo.tokens["tok"].Revoked)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionPasswordChange, audits.logs[0].Action)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("new-secret-1")))
}

func TestAuthServiceValidateTokenBadSignature(t *testing.T) {
	repo := &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "ali@example.com", PasswordHash: hashPassword(t, "secret123"), Active: true},
		},
	}
	svc, _ := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ali@example.com", Password: "secret123"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Minute,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
