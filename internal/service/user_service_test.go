package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type mockUserRepo struct {
	users       map[string]*models.User
	deactivated []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	for _, u := range m.users {
		if u.DNI == dni {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User, groups []string) error {
	if user.ID == "" {
		user.ID = "user-new"
	}
	user.Groups = pq.StringArray(groups)
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func validUserRequest() CreateUserRequest {
	return CreateUserRequest{
		DNI:       "30111222",
		Email:     "Laura.Benitez@Example.com",
		FirstName: "laura",
		LastName:  "benítez",
		Groups:    []string{"Preceptores"},
	}
}

func TestCreateUserWithoutPassword(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), validUserRequest())
	require.NoError(t, err)

	assert.Equal(t, "Laura", user.FirstName)
	assert.Equal(t, "Benítez", user.LastName)
	assert.Equal(t, "laura.benitez@example.com", user.Email)
	assert.Equal(t, pq.StringArray{"Preceptores"}, user.Groups)
	assert.True(t, user.Active)

	// No password given: the DNI is the initial one and a change is forced.
	assert.True(t, user.FirstLogin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("30111222")))
}

func TestCreateUserWithExplicitPassword(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil, nil)

	req := validUserRequest()
	req.Password = "correcthorse1"
	user, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, user.FirstLogin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correcthorse1")))
}

func TestCreateUserBadDNI(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, nil)

	for _, dni := range []string{"3011122", "301112223", "3011122a"} {
		req := validUserRequest()
		req.DNI = dni
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err, "dni %q should be rejected", dni)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCreateUserUnknownGroup(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, nil)

	req := validUserRequest()
	req.Groups = []string{"Bedeles"}
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateUserDuplicateDNI(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", DNI: "30111222", Email: "otra@example.com"},
	}}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), validUserRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", DNI: "27999888", Email: "laura.benitez@example.com"},
	}}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), validUserRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestDeactivateUserMissing(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, nil)

	err := svc.Deactivate(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
