package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type mockReportRepo struct {
	report *models.GeneralReport
	calls  int
}

func (m *mockReportRepo) GeneralReport(ctx context.Context) (*models.GeneralReport, error) {
	m.calls++
	return m.report, nil
}

func sampleReport() *models.GeneralReport {
	return &models.GeneralReport{
		TotalPrograms:    2,
		TotalCourses:     5,
		TotalStudents:    40,
		TotalEnrollments: 80,
		TotalUsers:       45,
		GeneratedAt:      time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		Programs: []models.ProgramCapacityReport{
			{
				ProgramID:   "prog-1",
				ProgramName: "Tecnicatura en Programación",
				ProgramCode: "TP25",
				Courses: []models.CourseCapacityReport{
					{CourseID: "course-1", Name: "Programación I", Code: "PRG101", Year: 1, Term: 1, MaxCapacity: 30, AvailableCapacity: 12},
					{CourseID: "course-2", Name: "Base de Datos", Code: "BDD201", Year: 2, Term: 1, MaxCapacity: 25, AvailableCapacity: 3},
				},
			},
		},
	}
}

func TestGeneralReport(t *testing.T) {
	repo := &mockReportRepo{report: sampleReport()}
	svc := NewReportService(repo, nil, nil, nil, nil)

	report, err := svc.General(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalPrograms)
	assert.Equal(t, 80, report.TotalEnrollments)
	assert.Equal(t, 1, repo.calls)
}

func TestExportGeneralCSV(t *testing.T) {
	repo := &mockReportRepo{report: sampleReport()}
	svc := NewReportService(repo, nil, nil, nil, nil)

	exported, err := svc.ExportGeneral(context.Background(), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "reporte-general-2026-03-15.csv", exported.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", exported.ContentType)

	lines := strings.Split(strings.TrimSpace(string(exported.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Carrera")
	assert.Contains(t, lines[0], "Cupos Disponibles")
	assert.Contains(t, lines[1], "Programación I")
	assert.Contains(t, lines[2], "BDD201")
}

func TestExportGeneralPDF(t *testing.T) {
	repo := &mockReportRepo{report: sampleReport()}
	svc := NewReportService(repo, nil, nil, nil, nil)

	exported, err := svc.ExportGeneral(context.Background(), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "reporte-general-2026-03-15.pdf", exported.Filename)
	assert.Equal(t, "application/pdf", exported.ContentType)
	assert.True(t, strings.HasPrefix(string(exported.Content), "%PDF"))
}

func TestExportGeneralUnknownFormat(t *testing.T) {
	repo := &mockReportRepo{report: sampleReport()}
	svc := NewReportService(repo, nil, nil, nil, nil)

	_, err := svc.ExportGeneral(context.Background(), ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
