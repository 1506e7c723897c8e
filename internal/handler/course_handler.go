package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/middleware"
	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/response"
)

type courseService interface {
	Create(ctx context.Context, req dto.CreateCourseRequest) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Get(ctx context.Context, id string) (*models.Course, error)
	Update(ctx context.Context, id string, req dto.UpdateCourseRequest, confirm bool) (*models.Course, error)
	Delete(ctx context.Context, id string, cascade bool) error
	AddSubject(ctx context.Context, courseID string, req dto.AddSubjectRequest) (*models.Course, error)
	UpdateSubject(ctx context.Context, courseID string, semester int, code string, req dto.UpdateSubjectRequest) (*models.Course, error)
	DeleteSubject(ctx context.Context, courseID string, semester int, code string) (*models.Course, error)
}

// CourseHandler exposes course and curriculum endpoints.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResourceID(c, course.ID)
	response.Created(c, course)
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Update godoc
// @Summary Update course
// @Description Shrinking totalSemesters over stored subjects or results needs confirm=true
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param confirm query bool false "Confirm dropping semesters with data"
// @Param payload body dto.UpdateCourseRequest true "Course fields"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req dto.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), c.Param("id"), req, queryBool(c, "confirm"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Delete godoc
// @Summary Delete course
// @Description A referenced course needs cascade=true
// @Tags Courses
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param cascade query bool false "Delete results and unassign students"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), queryBool(c, "cascade")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddSubject godoc
// @Summary Add subject to a semester
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.AddSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/subjects [post]
func (h *CourseHandler) AddSubject(c *gin.Context) {
	var req dto.AddSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid subject payload"))
		return
	}
	course, err := h.service.AddSubject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateSubject godoc
// @Summary Update subject
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param semester path int true "Semester"
// @Param code path string true "Subject code"
// @Param payload body dto.UpdateSubjectRequest true "Subject fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/subjects/{semester}/{code} [put]
func (h *CourseHandler) UpdateSubject(c *gin.Context) {
	semester, ok := semesterParam(c)
	if !ok {
		return
	}
	var req dto.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid subject payload"))
		return
	}
	course, err := h.service.UpdateSubject(c.Request.Context(), c.Param("id"), semester, c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// DeleteSubject godoc
// @Summary Delete subject
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param semester path int true "Semester"
// @Param code path string true "Subject code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/subjects/{semester}/{code} [delete]
func (h *CourseHandler) DeleteSubject(c *gin.Context) {
	semester, ok := semesterParam(c)
	if !ok {
		return
	}
	course, err := h.service.DeleteSubject(c.Request.Context(), c.Param("id"), semester, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

func semesterParam(c *gin.Context) (int, bool) {
	semester, err := strconv.Atoi(c.Param("semester"))
	if err != nil || semester < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be a positive number"))
		return 0, false
	}
	return semester, true
}
