package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() { sqlxDB.Close() }
}

func TestCreateWithCapacityCheckSuccess(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_capacity FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND active`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO enrollments`)).
		WithArgs(sqlmock.AnyArg(), "student-1", "course-1", sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "student-1", CourseID: "course-1"}
	err := repo.CreateWithCapacityCheck(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.True(t, enrollment.Active)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithCapacityCheckNoSeats(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_capacity FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND active`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), &models.Enrollment{StudentID: "student-1", CourseID: "course-1"})
	assert.ErrorIs(t, err, ErrNoSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithCapacityCheckCourseMissing(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_capacity FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), &models.Enrollment{StudentID: "student-1", CourseID: "course-gone"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithCapacityCheckUniqueViolation(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_capacity FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND active`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO enrollments`)).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), &models.Enrollment{StudentID: "student-1", CourseID: "course-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdraw(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET active = FALSE, withdrawn_at = $2 WHERE id = $1 AND active`)).
		WithArgs("enroll-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Withdraw(context.Background(), "enroll-1", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawAlreadyInactive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET active = FALSE, withdrawn_at = $2 WHERE id = $1 AND active`)).
		WithArgs("enroll-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Withdraw(context.Background(), "enroll-1", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentExists(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`)).
		WithArgs("student-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`)).
		WithArgs("student-2", "course-1").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.Exists(context.Background(), "student-2", "course-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
