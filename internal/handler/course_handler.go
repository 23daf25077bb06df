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

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Description List courses with program context and derived seat availability
// @Tags Courses
// @Produce json
// @Param programId query string false "Filter by program"
// @Param search query string false "Search in name or code"
// @Param active query bool false "Filter by active flag"
// @Param onlyAvailable query bool false "Only courses with free seats"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.ProgramID = c.Query("programId")
	filter.Search = c.Query("search")
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	if only := c.Query("onlyAvailable"); only != "" {
		if val, err := strconv.ParseBool(only); err == nil {
			filter.OnlyAvailable = val
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

	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Description The course year must fit within the program duration and its code is unique per program
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ListAvailable godoc
// @Summary List courses with free seats
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/available [get]
func (h *CourseHandler) ListAvailable(c *gin.Context) {
	courses, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// ListEnrollments godoc
// @Summary List course enrollments
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enrollments [get]
func (h *CourseHandler) ListEnrollments(c *gin.Context) {
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Delete godoc
// @Summary Delete course
// @Description Removal is blocked while active enrollments reference the course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
