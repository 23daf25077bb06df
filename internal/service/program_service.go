package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

var programCodePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{2,4}$`)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, program *models.Program) error
	CountDependents(ctx context.Context, id string) (courses int, students int, err error)
	Delete(ctx context.Context, id string) error
}

type programCourseLister interface {
	ListByProgram(ctx context.Context, programID string) ([]models.CourseDetail, error)
}

// CreateProgramRequest describes the payload for registering a program.
type CreateProgramRequest struct {
	Name          string `json:"name" validate:"required,min=3,max=100"`
	Code          string `json:"code" validate:"required"`
	Description   string `json:"description" validate:"max=500"`
	DurationYears int    `json:"duration_years" validate:"required,min=1,max=10"`
}

// ProgramService orchestrates academic program workflows.
type ProgramService struct {
	repo      programRepository
	courses   programCourseLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService creates a new program service instance.
func NewProgramService(repo programRepository, courses programCourseLister, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns paginated programs.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
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
	return programs, pagination, nil
}

// Get returns a program by ID.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// Create registers a new program enforcing code format and uniqueness.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !programCodePattern.MatchString(code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code must be 2-4 uppercase letters followed by 2-4 digits")
	}

	name := titleCase(req.Name)
	nameTaken, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program name")
	}
	if nameTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a program with this name already exists")
	}

	codeTaken, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program code")
	}
	if codeTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a program with this code already exists")
	}

	program := &models.Program{
		Name:          name,
		Code:          code,
		Description:   strings.TrimSpace(req.Description),
		DurationYears: req.DurationYears,
		Active:        true,
	}

	if err := s.repo.Create(ctx, program); err != nil {
		if err == repository.ErrDuplicate {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "a program with this name or code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}

	s.logger.Info("program created", zap.String("program_id", program.ID), zap.String("code", program.Code))
	return program, nil
}

// ListCourses returns the active courses of a program ordered by year and term.
func (s *ProgramService) ListCourses(ctx context.Context, id string) ([]models.CourseDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	courses, err := s.courses.ListByProgram(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program courses")
	}
	return courses, nil
}

// Delete removes a program only when no courses or students reference it.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	courses, students, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program dependents")
	}
	if courses > 0 || students > 0 {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("program has %d courses and %d students associated", courses, students))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}

	s.logger.Info("program deleted", zap.String("program_id", id))
	return nil
}
