package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]*models.StudentDetail
	records     map[string]bool
	orphans     []models.Student
	createdUser *models.User
	attached    map[string]*models.User
	deactivated []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	for _, s := range m.students {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByRecordNumber(ctx context.Context, recordNumber string) (bool, error) {
	return m.records[recordNumber], nil
}

func (m *mockStudentRepo) CreateWithUser(ctx context.Context, student *models.Student, user *models.User) error {
	if student.ID == "" {
		student.ID = "student-new"
	}
	if user.ID == "" {
		user.ID = "user-new"
	}
	student.UserID = user.ID
	if m.students == nil {
		m.students = make(map[string]*models.StudentDetail)
	}
	m.students[student.ID] = &models.StudentDetail{
		Student:   *student,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		DNI:       user.DNI,
	}
	m.createdUser = user
	return nil
}

func (m *mockStudentRepo) ListByProgram(ctx context.Context, programID string) ([]models.StudentDetail, error) {
	var out []models.StudentDetail
	for _, s := range m.students {
		if s.ProgramID == programID && s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockStudentRepo) FindMissingUsers(ctx context.Context) ([]models.Student, error) {
	return m.orphans, nil
}

func (m *mockStudentRepo) AttachUser(ctx context.Context, studentID string, user *models.User) error {
	if m.attached == nil {
		m.attached = make(map[string]*models.User)
	}
	m.attached[studentID] = user
	return nil
}

type mockUserChecker struct {
	dnis   map[string]bool
	emails map[string]bool
}

func (m *mockUserChecker) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	return m.dnis[dni], nil
}

func (m *mockUserChecker) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

type mockStudentProgramFinder struct {
	programs map[string]*models.Program
}

func (m *mockStudentProgramFinder) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentEnrollmentLister struct {
	byStudent map[string][]models.EnrollmentDetail
}

func (m *mockStudentEnrollmentLister) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return m.byStudent[studentID], nil
}

const programENF = "5f6e7d8c-9b0a-4c1d-8e2f-3a4b5c6d7e8f"

func newStudentFixture() (*StudentService, *mockStudentRepo, *mockUserChecker) {
	repo := &mockStudentRepo{}
	users := &mockUserChecker{dnis: map[string]bool{}, emails: map[string]bool{}}
	programs := &mockStudentProgramFinder{programs: map[string]*models.Program{
		programENF: {ID: programENF, Name: "Enfermería", Code: "ENF22", DurationYears: 3, Active: true},
	}}
	svc := NewStudentService(repo, users, programs, &mockStudentEnrollmentLister{}, nil, nil)
	return svc, repo, users
}

func validStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		FirstName:    "maría JOSÉ",
		LastName:     "gonzález",
		Email:        "Maria.Gonzalez@Example.com",
		DNI:          "40123456",
		RecordNumber: "12345",
		ProgramID:    programENF,
		EntryYear:    2025,
	}
}

func TestCreateStudentProvisionsAccount(t *testing.T) {
	svc, repo, _ := newStudentFixture()

	student, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)

	require.NotNil(t, repo.createdUser)
	assert.Equal(t, "María José", repo.createdUser.FirstName)
	assert.Equal(t, "González", repo.createdUser.LastName)
	assert.Equal(t, "maria.gonzalez@example.com", repo.createdUser.Email)
	assert.True(t, repo.createdUser.FirstLogin)

	// The initial password is the DNI.
	err = bcrypt.CompareHashAndPassword([]byte(repo.createdUser.PasswordHash), []byte("40123456"))
	assert.NoError(t, err)

	assert.Equal(t, "12345", student.RecordNumber)
	assert.True(t, student.Active)
}

func TestCreateStudentBadDNI(t *testing.T) {
	svc, _, _ := newStudentFixture()

	for _, dni := range []string{"1234567", "123456789", "4012345a", ""} {
		req := validStudentRequest()
		req.DNI = dni
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err, "dni %q should be rejected", dni)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCreateStudentBadRecordNumber(t *testing.T) {
	svc, _, _ := newStudentFixture()

	for _, record := range []string{"123", "12345678901", "12a45"} {
		req := validStudentRequest()
		req.RecordNumber = record
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err, "record number %q should be rejected", record)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCreateStudentEntryYearOutOfRange(t *testing.T) {
	svc, _, _ := newStudentFixture()

	for _, year := range []int{1999, 2031} {
		req := validStudentRequest()
		req.EntryYear = year
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err, "entry year %d should be rejected", year)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCreateStudentDuplicateDNI(t *testing.T) {
	svc, _, users := newStudentFixture()
	users.dnis["40123456"] = true

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestCreateStudentDuplicateRecordNumber(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.records = map[string]bool{"12345": true}

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestCreateStudentInactiveProgram(t *testing.T) {
	repo := &mockStudentRepo{}
	users := &mockUserChecker{}
	programs := &mockStudentProgramFinder{programs: map[string]*models.Program{
		programENF: {ID: programENF, Active: false},
	}}
	svc := NewStudentService(repo, users, programs, &mockStudentEnrollmentLister{}, nil, nil)

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotActive.Code, appErrors.FromError(err).Code)
}

func TestRepairMissingUsers(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.orphans = []models.Student{
		{ID: "student-1", RecordNumber: "10001"},
		{ID: "student-2", RecordNumber: "10002"},
	}

	result, err := svc.RepairMissingUsers(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"student-1", "student-2"}, result.Repaired)
	assert.Empty(t, result.Failed)

	user := repo.attached["student-1"]
	require.NotNil(t, user)
	assert.Equal(t, "alumno.10001@pendiente.local", user.Email)
	assert.Equal(t, "Legajo 10001", user.LastName)
	assert.True(t, user.FirstLogin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("10001")))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "María José", titleCase("  maría JOSÉ "))
	assert.Equal(t, "De La Cruz", titleCase("de la cruz"))
	assert.Equal(t, "", titleCase("   "))
}
