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

// userColumns selects user fields with the aggregated group names the role
// derivation runs over.
const userColumns = `u.id, u.dni, u.email, u.first_name, u.last_name, u.password_hash, u.first_login, u.superuser, u.active, u.last_login, u.created_at, u.updated_at,
        COALESCE(array_agg(g.name) FILTER (WHERE g.name IS NOT NULL), '{}') AS groups`

const userJoins = `FROM users u
        LEFT JOIN user_groups ug ON ug.user_id = u.id
        LEFT JOIN groups g ON g.id = ug.group_id`

const userGroupBy = ` GROUP BY u.id`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address, matched case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE LOWER(u.email) = LOWER($1)%s`, userColumns, userJoins, userGroupBy)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE u.id = $1%s`, userColumns, userJoins, userGroupBy)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByDNI checks whether the national identifier is already registered.
func (r *UserRepository) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE dni = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, dni); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check dni: %w", err)
	}
	return true, nil
}

// ExistsByEmail checks case-insensitively whether the email is already registered.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create persists a user and its group memberships in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, groups []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = createUserTx(ctx, tx, user, groups); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}
	return nil
}

// createUserTx inserts the user row and its memberships inside the caller's
// transaction. Shared with the student provisioning path so user and student
// become visible atomically.
func createUserTx(ctx context.Context, tx *sqlx.Tx, user *models.User, groups []string) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const insertUser = `INSERT INTO users (id, dni, email, first_name, last_name, password_hash, first_login, superuser, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insertUser,
		user.ID, user.DNI, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.FirstLogin, user.Superuser, user.Active,
		user.CreatedAt, user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	const insertMembership = `INSERT INTO user_groups (user_id, group_id)
        SELECT $1, id FROM groups WHERE name = $2`
	for _, group := range groups {
		if _, err := tx.ExecContext(ctx, insertMembership, user.ID, group); err != nil {
			return fmt.Errorf("add user to group %s: %w", group, err)
		}
	}
	user.Groups = append(user.Groups[:0], groups...)
	return nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Group != "" {
		conditions = append(conditions, fmt.Sprintf("u.id IN (SELECT ug2.user_id FROM user_groups ug2 JOIN groups g2 ON g2.id = ug2.group_id WHERE g2.name = $%d)", len(args)+1))
		args = append(args, filter.Group)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.email) LIKE $%d OR LOWER(u.first_name) LIKE $%d OR LOWER(u.last_name) LIKE $%d OR u.dni LIKE $%d)", idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"email":      "u.email",
		"dni":        "u.dni",
		"last_name":  "u.last_name",
		"created_at": "u.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "u.created_at"
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

	query := fmt.Sprintf(`SELECT %s %s%s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		userColumns, userJoins, clause, userGroupBy, orderBy, order, size, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT u.id) %s%s", userJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword stores a new password hash and clears the first-login flag.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, first_login = FALSE, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Deactivate flips a user inactive without removing its rows.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate user result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountActive returns the number of active users.
func (r *UserRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE active`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return total, nil
}
