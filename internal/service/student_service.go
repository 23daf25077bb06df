package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

var (
	dniPattern          = regexp.MustCompile(`^[0-9]{8}$`)
	recordNumberPattern = regexp.MustCompile(`^[0-9]{4,10}$`)
)

const (
	minEntryYear = 2000
	maxEntryYear = 2030
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ExistsByRecordNumber(ctx context.Context, recordNumber string) (bool, error)
	CreateWithUser(ctx context.Context, student *models.Student, user *models.User) error
	ListByProgram(ctx context.Context, programID string) ([]models.StudentDetail, error)
	Deactivate(ctx context.Context, id string) error
	FindMissingUsers(ctx context.Context) ([]models.Student, error)
	AttachUser(ctx context.Context, studentID string, user *models.User) error
}

type studentUserChecker interface {
	ExistsByDNI(ctx context.Context, dni string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type studentProgramFinder interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type studentEnrollmentLister interface {
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

// CreateStudentRequest describes the payload for registering a student. The
// linked user account is provisioned in the same operation with the national
// identifier as its initial password.
type CreateStudentRequest struct {
	FirstName    string `json:"first_name" validate:"required,min=2,max=60"`
	LastName     string `json:"last_name" validate:"required,min=2,max=60"`
	Email        string `json:"email" validate:"required,email"`
	DNI          string `json:"dni" validate:"required"`
	RecordNumber string `json:"record_number" validate:"required"`
	ProgramID    string `json:"program_id" validate:"required,uuid4"`
	EntryYear    int    `json:"entry_year" validate:"required"`
}

// RepairResult summarizes a placeholder-account repair run.
type RepairResult struct {
	Repaired []string `json:"repaired"`
	Failed   []string `json:"failed"`
}

// StudentService orchestrates student workflows including the composed user
// account lifecycle.
type StudentService struct {
	repo        studentRepository
	users       studentUserChecker
	programs    studentProgramFinder
	enrollments studentEnrollmentLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService creates a new student service instance.
func NewStudentService(repo studentRepository, users studentUserChecker, programs studentProgramFinder, enrollments studentEnrollmentLister, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, users: users, programs: programs, enrollments: enrollments, validator: validate, logger: logger}
}

// titleCase normalizes a name part: first letter of each word upper, rest lower.
func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(value)))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// List returns paginated student details.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
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
	return students, pagination, nil
}

// Get returns a student by ID with the composed user and program info.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetByUserID returns the student profile linked to a user account.
func (s *StudentService) GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student, nil
}

// Create registers a student and provisions its user account atomically. The
// account starts with the DNI as password and is flagged for a forced change
// on first login.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	dni := strings.TrimSpace(req.DNI)
	if !dniPattern.MatchString(dni) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dni must be exactly 8 digits")
	}
	recordNumber := strings.TrimSpace(req.RecordNumber)
	if !recordNumberPattern.MatchString(recordNumber) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record number must be 4 to 10 digits")
	}
	if req.EntryYear < minEntryYear || req.EntryYear > maxEntryYear {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("entry year must be between %d and %d", minEntryYear, maxEntryYear))
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

	dniTaken, err := s.users.ExistsByDNI(ctx, dni)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check dni")
	}
	if dniTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a user with this dni already exists")
	}

	emailTaken, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if emailTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a user with this email already exists")
	}

	recordTaken, err := s.repo.ExistsByRecordNumber(ctx, recordNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check record number")
	}
	if recordTaken {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "a student with this record number already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dni), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash initial password")
	}

	user := &models.User{
		DNI:          dni,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    titleCase(req.FirstName),
		LastName:     titleCase(req.LastName),
		PasswordHash: string(hash),
		FirstLogin:   true,
		Active:       true,
	}
	student := &models.Student{
		RecordNumber: recordNumber,
		ProgramID:    program.ID,
		EntryYear:    req.EntryYear,
		Active:       true,
	}

	if err := s.repo.CreateWithUser(ctx, student, user); err != nil {
		if err == repository.ErrDuplicate {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "student or user already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("student created",
		zap.String("student_id", student.ID),
		zap.String("user_id", user.ID),
		zap.String("record_number", student.RecordNumber))

	return s.Get(ctx, student.ID)
}

// ListByProgram returns the active students of a program ordered by name.
func (s *StudentService) ListByProgram(ctx context.Context, programID string) ([]models.StudentDetail, error) {
	if _, err := s.programs.FindByID(ctx, programID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	students, err := s.repo.ListByProgram(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program students")
	}
	return students, nil
}

// ListEnrollments returns the active enrollments of a student.
func (s *StudentService) ListEnrollments(ctx context.Context, id string) ([]models.EnrollmentDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListActiveByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student enrollments")
	}
	return enrollments, nil
}

// Deactivate flips a student inactive while keeping history.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.logger.Info("student deactivated", zap.String("student_id", id))
	return nil
}

// RepairMissingUsers provisions placeholder accounts for students whose user
// row is gone, typically after a partial legacy import. Each placeholder uses
// the record number as dni surrogate and starts locked on first login.
func (s *StudentService) RepairMissingUsers(ctx context.Context) (*RepairResult, error) {
	orphans, err := s.repo.FindMissingUsers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find students without accounts")
	}

	result := &RepairResult{}
	for _, orphan := range orphans {
		hash, err := bcrypt.GenerateFromPassword([]byte(orphan.RecordNumber), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("failed to hash placeholder password",
				zap.String("student_id", orphan.ID), zap.Error(err))
			result.Failed = append(result.Failed, orphan.ID)
			continue
		}

		user := &models.User{
			DNI:          orphan.RecordNumber,
			Email:        fmt.Sprintf("alumno.%s@pendiente.local", orphan.RecordNumber),
			FirstName:    "Alumno",
			LastName:     fmt.Sprintf("Legajo %s", orphan.RecordNumber),
			PasswordHash: string(hash),
			FirstLogin:   true,
			Active:       true,
		}
		if err := s.repo.AttachUser(ctx, orphan.ID, user); err != nil {
			s.logger.Error("failed to attach placeholder account",
				zap.String("student_id", orphan.ID), zap.Error(err))
			result.Failed = append(result.Failed, orphan.ID)
			continue
		}
		result.Repaired = append(result.Repaired, orphan.ID)
	}

	s.logger.Info("student account repair finished",
		zap.Int("repaired", len(result.Repaired)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}
