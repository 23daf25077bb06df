package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
)

const enrollmentDetailColumns = `e.id, e.student_id, e.course_id, e.enrolled_at, e.withdrawn_at, e.active, e.notes,
        u.first_name || ' ' || u.last_name AS student_name, s.record_number AS student_record_number,
        c.name AS course_name, c.code AS course_code`

const enrollmentDetailJoins = `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN users u ON u.id = s.user_id
        JOIN courses c ON c.id = e.course_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollment details filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("e.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.last_name",
		"course_name":  "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentDetailColumns, enrollmentDetailJoins, clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", enrollmentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, enrolled_at, withdrawn_at, active, notes FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.id = $1`, enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks if any enrollment row exists for the (student, course) pair.
// The uniqueness is unconditional: withdrawn rows still block the pair.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CreateWithCapacityCheck inserts a new active enrollment while holding a row
// lock on the course, so the seat check and the insert are one atomic unit and
// concurrent requests cannot oversell capacity. Returns ErrNoSeats when the
// derived available capacity is exhausted and ErrDuplicate when the
// (student, course) unique index trips under the race.
func (r *EnrollmentRepository) CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	enrollment.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var maxCapacity int
	const lockQuery = `SELECT max_capacity FROM courses WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &maxCapacity, lockQuery, enrollment.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock course row: %w", err)
	}

	var activeCount int
	const countQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND active`
	if err = tx.GetContext(ctx, &activeCount, countQuery, enrollment.CourseID); err != nil {
		return fmt.Errorf("count active enrollments: %w", err)
	}
	if maxCapacity-activeCount <= 0 {
		err = ErrNoSeats
		return err
	}

	const insertQuery = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, withdrawn_at, active, notes)
        VALUES ($1, $2, $3, $4, NULL, TRUE, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.EnrolledAt, enrollment.Notes); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Withdraw flips an active enrollment to inactive and stamps the withdrawal
// time. Returns sql.ErrNoRows when no active row matched, so a second
// withdraw attempt never silently succeeds.
func (r *EnrollmentRepository) Withdraw(ctx context.Context, id string, withdrawnAt time.Time) error {
	const query = `UPDATE enrollments SET active = FALSE, withdrawn_at = $2 WHERE id = $1 AND active`
	result, err := r.db.ExecContext(ctx, query, id, withdrawnAt)
	if err != nil {
		return fmt.Errorf("withdraw enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdraw enrollment result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActiveByStudent returns the active enrollments of a student with course info.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.student_id = $1 AND e.active ORDER BY e.enrolled_at DESC`,
		enrollmentDetailColumns, enrollmentDetailJoins)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListActiveByCourse returns the active enrollments of a course with student info.
func (r *EnrollmentRepository) ListActiveByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.course_id = $1 AND e.active ORDER BY u.last_name, u.first_name`,
		enrollmentDetailColumns, enrollmentDetailJoins)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}
