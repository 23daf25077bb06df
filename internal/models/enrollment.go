package models

import "time"

// Enrollment captures a student's registration to a course.
// Withdrawal is logical: the row stays, active flips to false and
// withdrawn_at is stamped, preserving enrollment history.
type Enrollment struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	EnrolledAt  time.Time  `db:"enrolled_at" json:"enrolled_at"`
	WithdrawnAt *time.Time `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	Active      bool       `db:"active" json:"active"`
	Notes       string     `db:"notes" json:"notes"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName         string `db:"student_name" json:"student_name"`
	StudentRecordNumber string `db:"student_record_number" json:"student_record_number"`
	CourseName          string `db:"course_name" json:"course_name"`
	CourseCode          string `db:"course_code" json:"course_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
