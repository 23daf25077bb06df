package models

import "time"

// GeneralReport aggregates active entity totals across the system.
type GeneralReport struct {
	TotalPrograms    int                     `json:"total_programs"`
	TotalCourses     int                     `json:"total_courses"`
	TotalStudents    int                     `json:"total_students"`
	TotalEnrollments int                     `json:"total_enrollments"`
	TotalUsers       int                     `json:"total_users"`
	Programs         []ProgramCapacityReport `json:"programs"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// ProgramCapacityReport lists the courses of a program that still have seats.
type ProgramCapacityReport struct {
	ProgramID   string                 `json:"program_id"`
	ProgramName string                 `json:"program_name"`
	ProgramCode string                 `json:"program_code"`
	Courses     []CourseCapacityReport `json:"courses"`
}

// CourseCapacityReport is a course row with its derived seat availability.
type CourseCapacityReport struct {
	CourseID          string `json:"course_id"`
	Name              string `json:"name"`
	Code              string `json:"code"`
	Year              int    `json:"year"`
	Term              int    `json:"term"`
	MaxCapacity       int    `json:"max_capacity"`
	AvailableCapacity int    `json:"available_capacity"`
}
