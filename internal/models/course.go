package models

import "time"

// Course represents a course (materia) offered within a program.
// Seat accounting is always derived from live enrollment counts, never stored.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	ProgramID   string    `db:"program_id" json:"program_id"`
	Year        int       `db:"year" json:"year"`
	Term        int       `db:"term" json:"term"`
	MaxCapacity int       `db:"max_capacity" json:"max_capacity"`
	Description string    `db:"description" json:"description"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CourseDetail enriches Course with program context and derived seat counts.
type CourseDetail struct {
	Course
	ProgramName       string `db:"program_name" json:"program_name"`
	ProgramCode       string `db:"program_code" json:"program_code"`
	EnrolledCount     int    `db:"enrolled_count" json:"enrolled_count"`
	AvailableCapacity int    `db:"available_capacity" json:"available_capacity"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	ProgramID     string
	Search        string
	Active        *bool
	OnlyAvailable bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
