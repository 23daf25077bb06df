package models

import "strings"

// Student holds the academic profile composed with a User identity.
// Identity fields (name, email, dni) live on the linked user only.
type Student struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"user_id"`
	RecordNumber string `db:"record_number" json:"record_number"`
	ProgramID    string `db:"program_id" json:"program_id"`
	EntryYear    int    `db:"entry_year" json:"entry_year"`
	Active       bool   `db:"active" json:"active"`
}

// StudentDetail joins the composed user and program columns for reads.
type StudentDetail struct {
	Student
	FirstName   string `db:"first_name" json:"first_name"`
	LastName    string `db:"last_name" json:"last_name"`
	Email       string `db:"email" json:"email"`
	DNI         string `db:"dni" json:"dni"`
	ProgramName string `db:"program_name" json:"program_name"`
}

// FullName joins the user name parts read through the composition.
func (s *StudentDetail) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ProgramID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
