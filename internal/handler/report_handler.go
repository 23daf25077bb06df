package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/service"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/response"
)

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// General godoc
// @Summary General system report
// @Description Totals per entity plus the per-program list of courses with free seats
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/general [get]
func (h *ReportHandler) General(c *gin.Context) {
	report, err := h.service.General(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export the general report
// @Tags Reports
// @Produce octet-stream
// @Param format query string true "Export format" Enums(csv, pdf)
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /reports/general/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	exported, err := h.service.ExportGeneral(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+exported.Filename)
	c.Data(http.StatusOK, exported.ContentType, exported.Content)
}
