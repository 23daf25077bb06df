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

func newProgramRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() { sqlxDB.Close() }
}

func TestProgramFindByID(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()

	repo := NewProgramRepository(db)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "code", "description", "duration_years", "active", "created_at"}).
		AddRow("prog-1", "Tecnicatura en Programación", "TP25", "", 3, true, created)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, code, description, duration_years, active, created_at FROM programs WHERE id = $1`)).
		WithArgs("prog-1").
		WillReturnRows(rows)

	program, err := repo.FindByID(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Equal(t, "TP25", program.Code)
	assert.Equal(t, 3, program.DurationYears)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramExistsByCode(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()

	repo := NewProgramRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM programs WHERE LOWER(code) = LOWER($1) LIMIT 1`)).
		WithArgs("TP25").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByCode(context.Background(), "TP25")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()

	repo := NewProgramRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO programs`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Program{Name: "Tecnicatura en Programación", Code: "TP25", DurationYears: 3, Active: true})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramCountDependents(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()

	repo := NewProgramRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM courses WHERE program_id = $1`)).
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM students WHERE program_id = $1`)).
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	courses, students, err := repo.CountDependents(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Equal(t, 4, courses)
	assert.Equal(t, 12, students)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramDeleteMissing(t *testing.T) {
	db, mock, cleanup := newProgramRepoMock(t)
	defer cleanup()

	repo := NewProgramRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM programs WHERE id = $1`)).
		WithArgs("prog-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "prog-gone")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
