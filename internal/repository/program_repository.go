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

// ProgramRepository manages persistence for academic programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs matching the provided filters.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	base := "FROM programs WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{"name": true, "code": true, "created_at": true}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "name"
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

	query := fmt.Sprintf(`SELECT id, name, code, description, duration_years, active, created_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, size, offset)

	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, name, code, description, duration_years, active, created_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// ExistsByName checks case-insensitively whether a program name is taken.
func (r *ProgramRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	const query = `SELECT 1 FROM programs WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program name: %w", err)
	}
	return true, nil
}

// ExistsByCode checks case-insensitively whether a program code is taken.
func (r *ProgramRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM programs WHERE LOWER(code) = LOWER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program code: %w", err)
	}
	return true, nil
}

// Create persists a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO programs (id, name, code, description, duration_years, active, created_at)
        VALUES (:id, :name, :code, :description, :duration_years, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// CountDependents returns how many courses and students still reference the program.
func (r *ProgramRepository) CountDependents(ctx context.Context, id string) (courses int, students int, err error) {
	const courseQuery = `SELECT COUNT(*) FROM courses WHERE program_id = $1`
	if err = r.db.GetContext(ctx, &courses, courseQuery, id); err != nil {
		return 0, 0, fmt.Errorf("count program courses: %w", err)
	}
	const studentQuery = `SELECT COUNT(*) FROM students WHERE program_id = $1`
	if err = r.db.GetContext(ctx, &students, studentQuery, id); err != nil {
		return 0, 0, fmt.Errorf("count program students: %w", err)
	}
	return courses, students, nil
}

// Delete removes a program row.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM programs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete program result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
