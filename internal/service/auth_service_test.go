package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type mockAuthUserRepo struct {
	users      map[string]*models.User
	lastLogin  map[string]time.Time
	passwords  map[string]string
	updateErrs map[string]error
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if err := m.updateErrs[id]; err != nil {
		return err
	}
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
		u.FirstLogin = false
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("40123456"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockAuthUserRepo{users: map[string]*models.User{
		"user-1": {
			ID:           "user-1",
			Email:        "maria.gonzalez@example.com",
			FirstName:    "María",
			LastName:     "González",
			PasswordHash: string(hash),
			FirstLogin:   true,
			Active:       true,
			Groups:       []string{models.GroupStudents},
		},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "sga-test",
	})
	return svc, repo
}

func TestLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "maria.gonzalez@example.com",
		Password: "40123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.True(t, resp.User.FirstLogin)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Contains(t, repo.lastLogin, "user-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "maria.gonzalez@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users["user-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "maria.gonzalez@example.com",
		Password: "40123456",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordClearsFirstLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "40123456",
		NewPassword:     "nueva-clave-segura",
	})
	require.NoError(t, err)

	user := repo.users["user-1"]
	assert.False(t, user.FirstLogin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("nueva-clave-segura")))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "nueva-clave-segura",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordSameAsCurrent(t *testing.T) {
	svc, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "40123456",
		NewPassword:     "40123456",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "maria.gonzalez@example.com",
		Password: "40123456",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestDeriveRolePrecedence(t *testing.T) {
	assert.Equal(t, models.RoleAdministrator, models.DeriveRole(true, nil))
	assert.Equal(t, models.RoleAdministrator, models.DeriveRole(false, []string{models.GroupTeachers, models.GroupAdministrators}))
	assert.Equal(t, models.RoleStudent, models.DeriveRole(false, []string{models.GroupProctors, models.GroupStudents}))
	assert.Equal(t, models.RoleTeacher, models.DeriveRole(false, []string{models.GroupTeachers, models.GroupProctors}))
	assert.Equal(t, models.RoleGuest, models.DeriveRole(false, []string{"Desconocidos"}))
	assert.Equal(t, models.RoleGuest, models.DeriveRole(false, nil))
}
