package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/export"
)

const (
	reportCacheKeyGeneral = "reports:general"
	reportCacheKeyPattern = "reports:*"
)

// ExportFormat selects the rendering backend for report downloads.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type reportRepository interface {
	GeneralReport(ctx context.Context) (*models.GeneralReport, error)
}

// ExportedReport is a rendered report ready to stream to the client.
type ExportedReport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ReportService builds the general report and renders its exports. Results
// are cached for a short TTL since the underlying aggregates touch every
// table.
type ReportService struct {
	repo   reportRepository
	cache  *CacheService
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportRepository, cache *CacheService, csv *export.CSVExporter, pdf *export.PDFExporter, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	return &ReportService{repo: repo, cache: cache, csv: csv, pdf: pdf, logger: logger}
}

// General returns the system-wide report, served from cache when fresh.
func (s *ReportService) General(ctx context.Context) (*models.GeneralReport, error) {
	var cached models.GeneralReport
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, reportCacheKeyGeneral, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	report, err := s.repo.GeneralReport(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build general report")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, reportCacheKeyGeneral, report, 0); err != nil {
			s.logger.Warn("failed to cache general report", zap.Error(err))
		}
	}
	return report, nil
}

// ExportGeneral renders the general report in the requested format.
func (s *ReportService) ExportGeneral(ctx context.Context, format ExportFormat) (*ExportedReport, error) {
	report, err := s.General(ctx)
	if err != nil {
		return nil, err
	}

	dataset := buildAvailabilityDataset(report)
	stamp := report.GeneratedAt.Format("2006-01-02")

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ExportedReport{
			Content:     content,
			ContentType: s.csv.ContentType(),
			Filename:    fmt.Sprintf("reporte-general-%s.csv", stamp),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Reporte General de Cupos")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ExportedReport{
			Content:     content,
			ContentType: s.pdf.ContentType(),
			Filename:    fmt.Sprintf("reporte-general-%s.pdf", stamp),
		}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}

func buildAvailabilityDataset(report *models.GeneralReport) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Carrera", "Materia", "Código", "Año", "Cuatrimestre", "Cupo Máximo", "Cupos Disponibles"},
	}
	for _, program := range report.Programs {
		for _, course := range program.Courses {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Carrera":           program.ProgramName,
				"Materia":           course.Name,
				"Código":            course.Code,
				"Año":               strconv.Itoa(course.Year),
				"Cuatrimestre":      strconv.Itoa(course.Term),
				"Cupo Máximo":       strconv.Itoa(course.MaxCapacity),
				"Cupos Disponibles": strconv.Itoa(course.AvailableCapacity),
			})
		}
	}
	return dataset
}
