package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
)

// ReportRepository runs the aggregate queries behind the general report.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// GeneralReport builds the system-wide totals plus the per-program breakdown
// of courses that still have seats. Availability is derived from the live
// count of active enrollments, never from a stored column.
func (r *ReportRepository) GeneralReport(ctx context.Context) (*models.GeneralReport, error) {
	report := &models.GeneralReport{GeneratedAt: time.Now().UTC()}

	const totalsQuery = `SELECT
        (SELECT COUNT(*) FROM programs WHERE active) AS total_programs,
        (SELECT COUNT(*) FROM courses WHERE active) AS total_courses,
        (SELECT COUNT(*) FROM students WHERE active) AS total_students,
        (SELECT COUNT(*) FROM enrollments WHERE active) AS total_enrollments,
        (SELECT COUNT(*) FROM users WHERE active) AS total_users`
	row := r.db.QueryRowxContext(ctx, totalsQuery)
	if err := row.Scan(&report.TotalPrograms, &report.TotalCourses, &report.TotalStudents,
		&report.TotalEnrollments, &report.TotalUsers); err != nil {
		return nil, fmt.Errorf("report totals: %w", err)
	}

	const availabilityQuery = `SELECT p.id AS program_id, p.name AS program_name, p.code AS program_code,
        c.id AS course_id, c.name, c.code, c.year, c.term, c.max_capacity,
        GREATEST(0, c.max_capacity - COUNT(e.id) FILTER (WHERE e.active))::int AS available_capacity
        FROM programs p
        JOIN courses c ON c.program_id = p.id AND c.active
        LEFT JOIN enrollments e ON e.course_id = c.id
        WHERE p.active
        GROUP BY p.id, p.name, p.code, c.id
        HAVING c.max_capacity - COUNT(e.id) FILTER (WHERE e.active) > 0
        ORDER BY p.name, c.year, c.term, c.name`

	rows, err := r.db.QueryxContext(ctx, availabilityQuery)
	if err != nil {
		return nil, fmt.Errorf("report availability: %w", err)
	}
	defer rows.Close()

	byProgram := make(map[string]int)
	for rows.Next() {
		var entry struct {
			ProgramID         string `db:"program_id"`
			ProgramName       string `db:"program_name"`
			ProgramCode       string `db:"program_code"`
			CourseID          string `db:"course_id"`
			Name              string `db:"name"`
			Code              string `db:"code"`
			Year              int    `db:"year"`
			Term              int    `db:"term"`
			MaxCapacity       int    `db:"max_capacity"`
			AvailableCapacity int    `db:"available_capacity"`
		}
		if err := rows.StructScan(&entry); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}

		idx, ok := byProgram[entry.ProgramID]
		if !ok {
			report.Programs = append(report.Programs, models.ProgramCapacityReport{
				ProgramID:   entry.ProgramID,
				ProgramName: entry.ProgramName,
				ProgramCode: entry.ProgramCode,
			})
			idx = len(report.Programs) - 1
			byProgram[entry.ProgramID] = idx
		}
		report.Programs[idx].Courses = append(report.Programs[idx].Courses, models.CourseCapacityReport{
			CourseID:          entry.CourseID,
			Name:              entry.Name,
			Code:              entry.Code,
			Year:              entry.Year,
			Term:              entry.Term,
			MaxCapacity:       entry.MaxCapacity,
			AvailableCapacity: entry.AvailableCapacity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}
	return report, nil
}
