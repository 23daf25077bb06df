package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/service"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	service  *service.EnrollmentService
	students *service.StudentService
	metrics  *service.MetricsService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc *service.EnrollmentService, students *service.StudentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, students: students, metrics: metrics}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Students only see their own history.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.StudentID = student.ID
	}

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if err := h.authorizeStudentAccess(c, id); err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Description Rejections in order: missing entities, inactive entities, program mismatch, duplicate pair, exhausted capacity. Students may only enroll themselves.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if req.StudentID != student.ID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only enroll themselves"))
			return
		}
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), req)
	if err != nil {
		h.recordOutcome(err)
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollment("enrolled")
	response.Created(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Description Flips the enrollment inactive keeping the row; the student cannot re-enroll in the same course afterwards
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	id := c.Param("id")
	if err := h.authorizeStudentAccess(c, id); err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.service.Withdraw(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollment("withdrawn")
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// authorizeStudentAccess lets staff through and restricts students to their
// own enrollments.
func (h *EnrollmentHandler) authorizeStudentAccess(c *gin.Context, enrollmentID string) error {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleStudent {
		return nil
	}
	student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		return err
	}
	owned, err := h.service.OwnedBy(c.Request.Context(), enrollmentID, student.ID)
	if err != nil {
		return err
	}
	if !owned {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return nil
}

func (h *EnrollmentHandler) recordOutcome(err error) {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrNoCapacity.Code:
		h.metrics.RecordEnrollment("no_capacity")
	case appErrors.ErrDuplicate.Code:
		h.metrics.RecordEnrollment("duplicate")
	case appErrors.ErrProgramMismatch.Code:
		h.metrics.RecordEnrollment("program_mismatch")
	default:
		h.metrics.RecordEnrollment("rejected")
	}
}
