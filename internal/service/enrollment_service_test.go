package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	pairs       map[string]bool
	capacity    int
	enrolled    int
	created     *models.Enrollment
	withdrawn   []string
}

func pairKey(studentID, courseID string) string {
	return studentID + "|" + courseID
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.pairs[pairKey(studentID, courseID)], nil
}

func (m *mockEnrollmentRepo) CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) error {
	if m.capacity-m.enrolled <= 0 {
		return repository.ErrNoSeats
	}
	if m.pairs[pairKey(enrollment.StudentID, enrollment.CourseID)] {
		return repository.ErrDuplicate
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if m.pairs == nil {
		m.pairs = make(map[string]bool)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enroll-new"
	}
	enrollment.Active = true
	m.enrollments[enrollment.ID] = *enrollment
	m.pairs[pairKey(enrollment.StudentID, enrollment.CourseID)] = true
	m.enrolled++
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Withdraw(ctx context.Context, id string, withdrawnAt time.Time) error {
	e, ok := m.enrollments[id]
	if !ok || !e.Active {
		return sql.ErrNoRows
	}
	e.Active = false
	e.WithdrawnAt = &withdrawnAt
	m.enrollments[id] = e
	m.enrolled--
	m.withdrawn = append(m.withdrawn, id)
	return nil
}

type mockStudentReader struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[string]*models.CourseDetail
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func activeStudent(id, programID string) *models.StudentDetail {
	return &models.StudentDetail{Student: models.Student{ID: id, ProgramID: programID, Active: true}}
}

func activeCourse(id, programID string) *models.CourseDetail {
	return &models.CourseDetail{Course: models.Course{ID: id, ProgramID: programID, Active: true}}
}

func newEnrollmentFixture(capacity int) (*EnrollmentService, *mockEnrollmentRepo) {
	repo := &mockEnrollmentRepo{capacity: capacity}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{
		"7f9c24e5-1d3b-4f6a-9e2c-8b5d0a1c3e7f": activeStudent("7f9c24e5-1d3b-4f6a-9e2c-8b5d0a1c3e7f", "prog-1"),
		"2a4b6c8d-0e1f-4a3b-8c5d-7e9f1a3b5c7d": activeStudent("2a4b6c8d-0e1f-4a3b-8c5d-7e9f1a3b5c7d", "prog-1"),
		"3c5d7e9f-1a2b-4c3d-9e4f-5a6b7c8d9e0f": activeStudent("3c5d7e9f-1a2b-4c3d-9e4f-5a6b7c8d9e0f", "prog-2"),
	}}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b": activeCourse("9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b", "prog-1"),
	}}
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)
	return svc, repo
}

const (
	studentA = "7f9c24e5-1d3b-4f6a-9e2c-8b5d0a1c3e7f"
	studentB = "2a4b6c8d-0e1f-4a3b-8c5d-7e9f1a3b5c7d"
	studentC = "3c5d7e9f-1a2b-4c3d-9e4f-5a6b7c8d9e0f"
	courseX  = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"
)

func TestEnrollSuccess(t *testing.T) {
	svc, repo := newEnrollmentFixture(30)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.True(t, detail.Active)
	assert.Equal(t, studentA, detail.StudentID)
	assert.Equal(t, courseX, detail.CourseID)
}

func TestEnrollStudentNotFound(t *testing.T) {
	svc, _ := newEnrollmentFixture(30)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID: "0b1c2d3e-4f5a-4b6c-8d7e-9f0a1b2c3d4e",
		CourseID:  courseX,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollProgramMismatch(t *testing.T) {
	svc, _ := newEnrollmentFixture(30)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentC, CourseID: courseX})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProgramMismatch.Code, appErrors.FromError(err).Code)
}

func TestEnrollDuplicatePair(t *testing.T) {
	svc, _ := newEnrollmentFixture(30)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestEnrollInactiveStudent(t *testing.T) {
	svc, _ := newEnrollmentFixture(30)
	inactive := activeStudent(studentA, "prog-1")
	inactive.Active = false
	svc.students.(*mockStudentReader).students[studentA] = inactive

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotActive.Code, appErrors.FromError(err).Code)
}

// Last-seat contention: once the only seat is taken the next enrollment is
// rejected for capacity; after the first student withdraws, the seat frees up
// for others but the withdrawn student stays blocked by the pair uniqueness.
func TestEnrollCapacityAndWithdrawCycle(t *testing.T) {
	svc, repo := newEnrollmentFixture(1)

	first, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: studentB, CourseID: courseX})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoCapacity.Code, appErrors.FromError(err).Code)

	withdrawn, err := svc.Withdraw(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, withdrawn.Active)
	assert.NotNil(t, withdrawn.WithdrawnAt)
	assert.Equal(t, 0, repo.enrolled)

	// Seat freed: another student can take it.
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: studentB, CourseID: courseX})
	require.NoError(t, err)

	// The withdrawn student cannot re-enroll in the same course.
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestWithdrawTwice(t *testing.T) {
	svc, _ := newEnrollmentFixture(5)

	first, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), first.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotActive.Code, appErrors.FromError(err).Code)
}

func TestWithdrawNotFound(t *testing.T) {
	svc, _ := newEnrollmentFixture(5)

	_, err := svc.Withdraw(context.Background(), "4d5e6f7a-8b9c-4d0e-9f1a-2b3c4d5e6f7a")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOwnedBy(t *testing.T) {
	svc, _ := newEnrollmentFixture(5)

	first, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentA, CourseID: courseX})
	require.NoError(t, err)

	owned, err := svc.OwnedBy(context.Background(), first.ID, studentA)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = svc.OwnedBy(context.Background(), first.ID, studentB)
	require.NoError(t, err)
	assert.False(t, owned)
}
