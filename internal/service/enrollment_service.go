package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) error
	Withdraw(ctx context.Context, id string, withdrawnAt time.Time) error
}

type enrollmentStudentFinder interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type enrollmentCourseFinder interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type enrollmentCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// EnrollRequest describes the payload for enrolling a student in a course.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	CourseID  string `json:"course_id" validate:"required,uuid4"`
	Notes     string `json:"notes" validate:"max=500"`
}

// EnrollmentService orchestrates enrollment workflows. The checks run in a
// fixed order so clients always get the most specific rejection: existence,
// activity, program match, duplicate pair, then capacity.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  enrollmentStudentFinder
	courses   enrollmentCourseFinder
	cache     enrollmentCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService creates a new enrollment service instance.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentFinder, courses enrollmentCourseFinder, cache enrollmentCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, cache: cache, validator: validate, logger: logger}
}

// List returns paginated enrollment details.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Get returns an enrollment with student and course context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student in a course. The seat check and the insert run
// under a course row lock so concurrent requests for the last seat cannot
// both succeed. A withdrawn enrollment permanently blocks the pair.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrNotActive, "student is not active")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrNotActive, "course is not active")
	}

	if student.ProgramID != course.ProgramID {
		return nil, appErrors.Clone(appErrors.ErrProgramMismatch, "")
	}

	taken, err := s.repo.Exists(ctx, student.ID, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "student is already enrolled in this course")
	}

	enrollment := &models.Enrollment{
		StudentID: student.ID,
		CourseID:  course.ID,
		Notes:     req.Notes,
	}
	if err := s.repo.CreateWithCapacityCheck(ctx, enrollment); err != nil {
		switch err {
		case repository.ErrNoSeats:
			return nil, appErrors.Clone(appErrors.ErrNoCapacity, "")
		case repository.ErrDuplicate:
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "student is already enrolled in this course")
		case sql.ErrNoRows:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.invalidateReportCache(ctx)
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("course_id", course.ID))

	return s.Get(ctx, enrollment.ID)
}

// Withdraw flips an active enrollment inactive and stamps the withdrawal
// time. The row is kept and the (student, course) pair stays blocked.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.Active {
		return nil, appErrors.Clone(appErrors.ErrNotActive, "enrollment is already withdrawn")
	}

	if err := s.repo.Withdraw(ctx, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotActive, "enrollment is already withdrawn")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}

	s.invalidateReportCache(ctx)
	s.logger.Info("enrollment withdrawn", zap.String("enrollment_id", id))
	return s.Get(ctx, id)
}

// OwnedBy reports whether the enrollment belongs to the given student.
func (s *EnrollmentService) OwnedBy(ctx context.Context, id, studentID string) (bool, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment.StudentID == studentID, nil
}

func (s *EnrollmentService) invalidateReportCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, reportCacheKeyPattern); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}
