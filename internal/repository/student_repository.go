package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
)

const studentDetailColumns = `s.id, s.user_id, s.record_number, s.program_id, s.entry_year, s.active,
        u.first_name, u.last_name, u.email, u.dni, p.name AS program_name`

const studentDetailJoins = `FROM students s
        JOIN users u ON u.id = s.user_id
        JOIN programs p ON p.id = s.program_id`

// StudentRepository manages persistence for students and the users they compose.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns student details matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("s.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.first_name) LIKE $%d OR LOWER(u.last_name) LIKE $%d OR u.dni LIKE $%d OR s.record_number LIKE $%d)", idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"record_number": "s.record_number",
		"last_name":     "u.last_name",
		"entry_year":    "s.entry_year",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "u.last_name, u.first_name"
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

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentDetailColumns, studentDetailJoins, clause, orderBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", studentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student with the composed user and program columns.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1`, studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUserID returns the student profile linked to a user identity.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.user_id = $1`, studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByRecordNumber checks whether a record number is already assigned.
func (r *StudentRepository) ExistsByRecordNumber(ctx context.Context, recordNumber string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE record_number = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, recordNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check record number: %w", err)
	}
	return true, nil
}

// CreateWithUser provisions the user identity and the student profile in one
// transaction, so a student can never exist without its linked account.
func (r *StudentRepository) CreateWithUser(ctx context.Context, student *models.Student, user *models.User) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = createUserTx(ctx, tx, user, []string{models.GroupStudents}); err != nil {
		return err
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UserID = user.ID

	const insertStudent = `INSERT INTO students (id, user_id, record_number, program_id, entry_year, active)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertStudent,
		student.ID, student.UserID, student.RecordNumber, student.ProgramID, student.EntryYear, student.Active); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("insert student: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student: %w", err)
	}
	return nil
}

// ListByProgram returns the active students of a program ordered by surname.
func (r *StudentRepository) ListByProgram(ctx context.Context, programID string) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.program_id = $1 AND s.active ORDER BY u.last_name, u.first_name`,
		studentDetailColumns, studentDetailJoins)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, programID); err != nil {
		return nil, fmt.Errorf("list program students: %w", err)
	}
	return students, nil
}

// Deactivate flips a student inactive, keeping history intact.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = FALSE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate student result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindMissingUsers returns students whose linked user row no longer exists.
// These rows come from legacy imports; the repair flow provisions a
// placeholder account for each.
func (r *StudentRepository) FindMissingUsers(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT s.id, s.user_id, s.record_number, s.program_id, s.entry_year, s.active
        FROM students s
        LEFT JOIN users u ON u.id = s.user_id
        WHERE u.id IS NULL
        ORDER BY s.record_number`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("find students without users: %w", err)
	}
	return students, nil
}

// AttachUser provisions a replacement user and relinks the student to it in
// one transaction.
func (r *StudentRepository) AttachUser(ctx context.Context, studentID string, user *models.User) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attach transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = createUserTx(ctx, tx, user, []string{models.GroupStudents}); err != nil {
		return err
	}

	const relink = `UPDATE students SET user_id = $2 WHERE id = $1`
	var result sql.Result
	if result, err = tx.ExecContext(ctx, relink, studentID, user.ID); err != nil {
		return fmt.Errorf("relink student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("relink student result: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attach: %w", err)
	}
	return nil
}

// CountActive returns the number of active students.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE active`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return total, nil
}
