package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// UserRole is the effective role derived from group membership.
type UserRole string

const (
	RoleAdministrator UserRole = "ADMINISTRATOR"
	RoleStudent       UserRole = "STUDENT"
	RoleTeacher       UserRole = "TEACHER"
	RoleProctor       UserRole = "PROCTOR"
	RoleGuest         UserRole = "GUEST"
)

// Group names as stored in the groups table.
const (
	GroupAdministrators = "Administradores"
	GroupStudents       = "Alumnos"
	GroupTeachers       = "Docentes"
	GroupProctors       = "Preceptores"
	GroupGuests         = "Invitados"
)

var roleByGroup = map[string]UserRole{
	GroupAdministrators: RoleAdministrator,
	GroupStudents:       RoleStudent,
	GroupTeachers:       RoleTeacher,
	GroupProctors:       RoleProctor,
}

// rolePrecedence fixes the order used when a user belongs to several groups.
var rolePrecedence = []UserRole{RoleAdministrator, RoleStudent, RoleTeacher, RoleProctor}

// DeriveRole computes the effective role from superuser status and group names.
// Superusers are administrators; users without any known group are guests.
func DeriveRole(superuser bool, groups []string) UserRole {
	if superuser {
		return RoleAdministrator
	}
	held := make(map[UserRole]struct{}, len(groups))
	for _, g := range groups {
		if role, ok := roleByGroup[g]; ok {
			held[role] = struct{}{}
		}
	}
	for _, role := range rolePrecedence {
		if _, ok := held[role]; ok {
			return role
		}
	}
	return RoleGuest
}

// User represents an authenticable identity stored in the users table.
// Role is never persisted; it is always derived from group membership.
type User struct {
	ID           string         `db:"id" json:"id"`
	DNI          string         `db:"dni" json:"dni"`
	Email        string         `db:"email" json:"email"`
	FirstName    string         `db:"first_name" json:"first_name"`
	LastName     string         `db:"last_name" json:"last_name"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FirstLogin   bool           `db:"first_login" json:"first_login"`
	Superuser    bool           `db:"superuser" json:"superuser"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	Groups       pq.StringArray `db:"groups" json:"groups"`
}

// FullName joins the name parts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Role derives the effective role for this user.
func (u *User) Role() UserRole {
	return DeriveRole(u.Superuser, u.Groups)
}

// Group is a named role-bearing group.
type Group struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// GroupPermission scopes an action on a resource to a group.
type GroupPermission struct {
	GroupID  string `db:"group_id" json:"group_id"`
	Resource string `db:"resource" json:"resource"`
	Action   string `db:"action" json:"action"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Active    *bool
	Group     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
