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

// courseColumns selects course fields with program context and the derived
// seat counts. Capacity is never stored: it is recomputed from the live count
// of active enrollments on every read.
const courseColumns = `c.id, c.name, c.code, c.program_id, c.year, c.term, c.max_capacity, c.description, c.active, c.created_at,
        p.name AS program_name, p.code AS program_code,
        COUNT(e.id) FILTER (WHERE e.active) AS enrolled_count,
        GREATEST(0, c.max_capacity - COUNT(e.id) FILTER (WHERE e.active))::int AS available_capacity`

const courseJoins = `FROM courses c
        JOIN programs p ON p.id = c.program_id
        LEFT JOIN enrollments e ON e.course_id = c.id`

const courseGroupBy = ` GROUP BY c.id, p.name, p.code`

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns course details matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("c.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	having := ""
	if filter.OnlyAvailable {
		having = " HAVING c.max_capacity - COUNT(e.id) FILTER (WHERE e.active) > 0"
	}

	allowedSorts := map[string]string{
		"name":       "c.name",
		"code":       "c.code",
		"year":       "c.year",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.year, c.term, c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT %s %s%s%s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		courseColumns, courseJoins, clause, courseGroupBy, having, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT c.id %s%s%s%s) AS matched", courseJoins, clause, courseGroupBy, having)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course with program context and derived capacity.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE c.id = $1%s`, courseColumns, courseJoins, courseGroupBy)
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByProgramAndCode checks whether the (program, code) pair is taken, case-insensitively.
func (r *CourseRepository) ExistsByProgramAndCode(ctx context.Context, programID, code string) (bool, error) {
	const query = `SELECT 1 FROM courses WHERE program_id = $1 AND LOWER(code) = LOWER($2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, programID, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, name, code, program_id, year, term, max_capacity, description, active, created_at)
        VALUES (:id, :name, :code, :program_id, :year, :term, :max_capacity, :description, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// HasActiveEnrollments reports whether any active enrollment references the course.
func (r *CourseRepository) HasActiveEnrollments(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE course_id = $1 AND active LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course enrollments: %w", err)
	}
	return true, nil
}

// Delete removes a course row.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByProgram returns the active courses of a program ordered by year, term and name.
func (r *CourseRepository) ListByProgram(ctx context.Context, programID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE c.program_id = $1 AND c.active%s ORDER BY c.year, c.term, c.name`,
		courseColumns, courseJoins, courseGroupBy)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, programID); err != nil {
		return nil, fmt.Errorf("list program courses: %w", err)
	}
	return courses, nil
}

// ListWithCapacity returns active courses whose derived available capacity is positive.
func (r *CourseRepository) ListWithCapacity(ctx context.Context) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE c.active%s HAVING c.max_capacity - COUNT(e.id) FILTER (WHERE e.active) > 0 ORDER BY c.year, c.term, c.name`,
		courseColumns, courseJoins, courseGroupBy)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses with capacity: %w", err)
	}
	return courses, nil
}
