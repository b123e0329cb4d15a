package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	created       int
	revokedAll    int
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]models.User),
		refreshTokens: make(map[string]models.RefreshToken),
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.users[user.ID] = *user
	m.created++
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll++
	for token, rt := range m.refreshTokens {
		if rt.UserID == userID {
			rt.Revoked = true
			m.refreshTokens[token] = rt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return &rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for token, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			m.refreshTokens[token] = rt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

type mockProfileCreator struct {
	profiles []models.InstructorProfile
}

func (m *mockProfileCreator) CreateProfile(ctx context.Context, profile *models.InstructorProfile) error {
	m.profiles = append(m.profiles, *profile)
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepo, *mockProfileCreator) {
	repo := newMockAuthRepo()
	profiles := &mockProfileCreator{}
	svc := NewAuthService(repo, profiles, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "agrisetu-test",
	})
	return svc, repo, profiles
}

func TestSignupCreatesAccount(t *testing.T) {
	svc, repo, profiles := newAuthFixture()

	resp, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "farmer@example.com",
		Password: "secret123",
		FullName: "Farm User",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleUser, resp.User.Role, "role defaults to USER")
	assert.Equal(t, models.LanguageEnglish, resp.User.Language)
	assert.Equal(t, 1, repo.created)
	assert.Empty(t, profiles.profiles, "plain users get no instructor profile")
}

func TestSignupInstructorCreatesProfile(t *testing.T) {
	svc, repo, profiles := newAuthFixture()

	resp, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "inst@example.com",
		Password: "secret123",
		FullName: "Instructor",
		Role:     models.RoleInstructor,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, resp.User.Role)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, resp.User.ID, profiles.profiles[0].UserID)
	assert.Equal(t, 1, repo.created)
}

func TestSignupExistingEmailReissuesTokens(t *testing.T) {
	svc, repo, profiles := newAuthFixture()

	first, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "farmer@example.com",
		Password: "secret123",
		FullName: "Farm User",
	})
	require.NoError(t, err)

	second, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "farmer@example.com",
		Password: "different-password",
		FullName: "Someone Else",
		Role:     models.RoleInstructor,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.created, "the second signup never creates a second account")
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, models.RoleUser, second.User.Role, "the stored role wins over the request")
	assert.Empty(t, profiles.profiles)
}

func TestSignupInactiveAccount(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	repo.users["u1"] = models.User{ID: "u1", Email: "closed@example.com", Active: false}

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "closed@example.com",
		Password: "secret123",
		FullName: "Closed",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginSuccess(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["u1"] = models.User{ID: "u1", Email: "farmer@example.com", PasswordHash: string(hash), FullName: "Farm User", Role: models.RoleUser, Active: true}

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "farmer@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["u1"] = models.User{ID: "u1", Email: "farmer@example.com", PasswordHash: string(hash), Active: true}

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "farmer@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["u1"] = models.User{ID: "u1", Email: "farmer@example.com", PasswordHash: string(hash), Active: true}

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "farmer@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used refresh token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["u1"] = models.User{ID: "u1", Email: "farmer@example.com", PasswordHash: string(hash), Active: true}

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "secret123", NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.revokedAll)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "secret123", NewPassword: "another-secret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
