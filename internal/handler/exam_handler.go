package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/pkg/response"
)

type examService interface {
	SaveBulkMarks(ctx context.Context, req dto.BulkMarksRequest) (*dto.BulkMarksResult, error)
	GetSubjectMarks(ctx context.Context, query dto.SubjectMarksQuery) (*dto.SubjectMarksResponse, error)
	GetStudentResults(ctx context.Context, identity models.Identity, studentID string) ([]models.ExamResult, error)
}

// ExamHandler exposes mark entry and result endpoints.
type ExamHandler struct {
	service examService
}

// NewExamHandler constructs the handler.
func NewExamHandler(svc examService) *ExamHandler {
	return &ExamHandler{service: svc}
}

// SaveBulk godoc
// @Summary Save one subject's marks for many students
// @Description Each entry is saved independently; failures are listed per student
// @Tags Exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exams/bulk [post]
func (h *ExamHandler) SaveBulk(c *gin.Context) {
	var req dto.BulkMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid marks payload"))
		return
	}
	result, err := h.service.SaveBulkMarks(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// SubjectMarks godoc
// @Summary Saved marks of one subject
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param courseId query string true "Course ID"
// @Param semester query int true "Semester"
// @Param examType query string true "pre-board or board"
// @Param subjectName query string true "Subject name"
// @Success 200 {object} response.Envelope
// @Router /exams/subject-marks [get]
func (h *ExamHandler) SubjectMarks(c *gin.Context) {
	var query dto.SubjectMarksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid subject marks query"))
		return
	}
	marks, err := h.service.GetSubjectMarks(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks)
}

// StudentResults godoc
// @Summary Results of one student
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exams/student/{studentId} [get]
func (h *ExamHandler) StudentResults(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	results, err := h.service.GetStudentResults(c.Request.Context(), identity, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results)
}
