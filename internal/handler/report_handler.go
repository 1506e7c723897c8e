package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/service"
	"github.com/noah-isme/student-record-api/pkg/response"
)

type reportService interface {
	Transcript(ctx context.Context, identity models.Identity, studentID, format string) (*service.Report, error)
	SubjectMarksSheet(ctx context.Context, query dto.SubjectMarksQuery, format string) (*service.Report, error)
}

// ReportHandler streams rendered reports.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Transcript godoc
// @Summary Download a student transcript
// @Tags Reports
// @Produce application/pdf
// @Produce text/csv
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /reports/students/{studentId}/transcript [get]
func (h *ReportHandler) Transcript(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Transcript(c.Request.Context(), identity, c.Param("studentId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Body)
}

// SubjectMarks godoc
// @Summary Download a subject marks sheet
// @Tags Reports
// @Produce application/pdf
// @Produce text/csv
// @Security BearerAuth
// @Param courseId query string true "Course ID"
// @Param semester query int true "Semester"
// @Param examType query string true "pre-board or board"
// @Param subjectName query string true "Subject name"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /reports/subject-marks [get]
func (h *ReportHandler) SubjectMarks(c *gin.Context) {
	var query dto.SubjectMarksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid subject marks query"))
		return
	}
	report, err := h.service.SubjectMarksSheet(c.Request.Context(), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Body)
}
