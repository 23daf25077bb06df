package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByDNI(ctx context.Context, dni string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User, groups []string) error
	Deactivate(ctx context.Context, id string) error
}

// CreateUserRequest describes the payload for provisioning a staff account.
// Student accounts are created through the student workflow instead.
type CreateUserRequest struct {
	DNI       string   `json:"dni" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	FirstName string   `json:"first_name" validate:"required,min=2,max=60"`
	LastName  string   `json:"last_name" validate:"required,min=2,max=60"`
	Password  string   `json:"password" validate:"omitempty,min=8"`
	Groups    []string `json:"groups" validate:"omitempty,dive,oneof=Administradores Alumnos Docentes Preceptores Invitados"`
}

// UserService exposes account administration use cases.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new user service instance.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return users, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions a new account with group memberships. When no password is
// given the DNI is used as the initial one and the first-login change applies.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	dni := strings.TrimSpace(req.DNI)
	if !dniPattern.MatchString(dni) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dni must be exactly 8 digits")
	}

	dniTaken, err := s.repo.ExistsByDNI(ctx, dni)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check dni")
	}
	if dniTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a user with this dni already exists")
	}

	emailTaken, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if emailTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a user with this email already exists")
	}

	password := req.Password
	firstLogin := false
	if password == "" {
		password = dni
		firstLogin = true
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		DNI:          dni,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    titleCase(req.FirstName),
		LastName:     titleCase(req.LastName),
		PasswordHash: string(hash),
		FirstLogin:   firstLogin,
		Active:       true,
	}

	if err := s.repo.Create(ctx, user, req.Groups); err != nil {
		if err == repository.ErrDuplicate {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "a user with this dni or email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.Strings("groups", req.Groups))
	return s.Get(ctx, user.ID)
}

// Deactivate flips an account inactive so it can no longer authenticate.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	s.logger.Info("user deactivated", zap.String("user_id", id))
	return nil
}
