package models

import "time"

// Program represents an academic program (carrera) with a fixed duration.
type Program struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Code          string    `db:"code" json:"code"`
	Description   string    `db:"description" json:"description"`
	DurationYears int       `db:"duration_years" json:"duration_years"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ProgramFilter encapsulates allowed search parameters for listing programs.
type ProgramFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
