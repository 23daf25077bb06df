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

var courseCodePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{3,4}$`)

const defaultCourseCapacity = 30

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByProgramAndCode(ctx context.Context, programID, code string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	HasActiveEnrollments(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListWithCapacity(ctx context.Context) ([]models.CourseDetail, error)
}

type courseProgramFinder interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type courseEnrollmentLister interface {
	ListActiveByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

// CreateCourseRequest describes the payload for registering a course.
type CreateCourseRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Code        string `json:"code" validate:"required"`
	ProgramID   string `json:"program_id" validate:"required,uuid4"`
	Year        int    `json:"year" validate:"required,min=1"`
	Term        int    `json:"term" validate:"required,min=1,max=2"`
	MaxCapacity *int   `json:"max_capacity" validate:"omitempty,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// CourseService orchestrates course workflows.
type CourseService struct {
	repo        courseRepository
	programs    courseProgramFinder
	enrollments courseEnrollmentLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService creates a new course service instance.
func NewCourseService(repo courseRepository, programs courseProgramFinder, enrollments courseEnrollmentLister, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, programs: programs, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns paginated course details with derived seat counts.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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
	return courses, pagination, nil
}

// Get returns a course by ID with program context and availability.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course inside a program. The year must fit within
// the program duration and the code is unique per program.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !courseCodePattern.MatchString(code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code must be 2-4 uppercase letters followed by 3-4 digits")
	}

	program, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if !program.Active {
		return nil, appErrors.Clone(appErrors.ErrNotActive, "program is not active")
	}
	if req.Year > program.DurationYears {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("year %d exceeds program duration of %d years", req.Year, program.DurationYears))
	}

	taken, err := s.repo.ExistsByProgramAndCode(ctx, program.ID, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a course with this code already exists in the program")
	}

	capacity := defaultCourseCapacity
	if req.MaxCapacity != nil {
		capacity = *req.MaxCapacity
	}

	course := &models.Course{
		Name:        titleCase(req.Name),
		Code:        code,
		ProgramID:   program.ID,
		Year:        req.Year,
		Term:        req.Term,
		MaxCapacity: capacity,
		Description: strings.TrimSpace(req.Description),
		Active:      true,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		if err == repository.ErrDuplicate {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "a course with this code already exists in the program")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.logger.Info("course created",
		zap.String("course_id", course.ID),
		zap.String("code", course.Code),
		zap.String("program_id", course.ProgramID))

	return s.Get(ctx, course.ID)
}

// ListAvailable returns active courses that still have seats.
func (s *CourseService) ListAvailable(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.repo.ListWithCapacity(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	return courses, nil
}

// ListEnrollments returns the active enrollments of a course.
func (s *CourseService) ListEnrollments(ctx context.Context, id string) ([]models.EnrollmentDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListActiveByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course enrollments")
	}
	return enrollments, nil
}

// Delete removes a course only when no active enrollments reference it.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	busy, err := s.repo.HasActiveEnrollments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course enrollments")
	}
	if busy {
		return appErrors.Clone(appErrors.ErrConflict, "course has active enrollments")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}
