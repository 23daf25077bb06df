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

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// ownStudentID resolves the student profile of the authenticated user.
// Returns empty when the user has no student profile.
func (h *StudentHandler) ownStudentID(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	student, err := h.service.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		return ""
	}
	return student.ID
}

// authorizeStudentRead lets administrators and proctors read any student;
// every other role only its own profile.
func (h *StudentHandler) authorizeStudentRead(c *gin.Context, studentID string) error {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	if claims.Role == models.RoleAdministrator || claims.Role == models.RoleProctor {
		return nil
	}
	if h.ownStudentID(c) != studentID {
		return appErrors.ErrForbidden
	}
	return nil
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param programId query string false "Filter by program"
// @Param search query string false "Search in name, dni or record number"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.ProgramID = c.Query("programId")
	filter.Search = c.Query("search")
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

	students, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// ListByProgram godoc
// @Summary List program students
// @Description Active students of a program ordered by last name
// @Tags Students
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /programs/{id}/students [get]
func (h *StudentHandler) ListByProgram(c *gin.Context) {
	students, err := h.service.ListByProgram(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Get godoc
// @Summary Get student
// @Description Administrators and proctors may read any student; everyone else only their own profile
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if err := h.authorizeStudentRead(c, id); err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Me godoc
// @Summary Current student profile
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/me [get]
func (h *StudentHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.service.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register student
// @Description Provisions the linked user account in the same transaction. The initial password is the student's DNI and must be changed on first login.
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// ListEnrollments godoc
// @Summary List student enrollments
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/enrollments [get]
func (h *StudentHandler) ListEnrollments(c *gin.Context) {
	id := c.Param("id")
	if err := h.authorizeStudentRead(c, id); err != nil {
		response.Error(c, err)
		return
	}
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Deactivate godoc
// @Summary Deactivate student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Security BearerAuth
// @Router /students/{id} [delete]
func (h *StudentHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RepairMissingUsers godoc
// @Summary Repair students without accounts
// @Description Provisions placeholder accounts for students whose linked user row is missing after legacy imports
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/repair-missing-users [post]
func (h *StudentHandler) RepairMissingUsers(c *gin.Context) {
	result, err := h.service.RepairMissingUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
