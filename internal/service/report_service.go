package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/export"
)

type resultSource interface {
	GetStudentResults(ctx context.Context, identity models.Identity, studentID string) ([]models.ExamResult, error)
	SubjectMarkRows(ctx context.Context, query dto.SubjectMarksQuery) ([]models.SubjectMark, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Report is a rendered document ready to be streamed.
type Report struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService renders transcripts and marks sheets.
type ReportService struct {
	results resultSource
	users   userFinder
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewReportService constructs a ReportService. Nil renderers fall back to the pkg/export defaults.
func NewReportService(results resultSource, users userFinder, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{results: results, users: users, csv: csv, pdf: pdf, logger: logger}
}

var transcriptHeaders = []string{"Semester", "Exam", "Subject", "Marks", "Full Marks", "Pass Marks", "Status"}

// Transcript renders one row per subject result of a student.
func (s *ReportService) Transcript(ctx context.Context, identity models.Identity, studentID, format string) (*Report, error) {
	f, err := parseReportFormat(format)
	if err != nil {
		return nil, err
	}
	results, err := s.results.GetStudentResults(ctx, identity, studentID)
	if err != nil {
		return nil, err
	}
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	data := export.Dataset{Headers: transcriptHeaders, Rows: [][]string{}}
	data.Notes = append(data.Notes, fmt.Sprintf("Student: %s <%s>", student.Name, student.Email))
	for _, result := range results {
		label := result.ExamType.Label()
		if result.Course != nil {
			data.Notes = appendUnique(data.Notes, fmt.Sprintf("Course: %s (%s)", result.Course.Name, result.Course.Code))
		}
		for _, entry := range result.Results {
			data.Rows = append(data.Rows, []string{
				strconv.Itoa(result.Semester),
				label,
				entry.Subject,
				formatMarks(entry.MarksObtained),
				formatMarks(entry.FullMarks),
				formatMarks(entry.PassMarks),
				string(entry.Status),
			})
		}
		data.Notes = append(data.Notes, fmt.Sprintf("Semester %d %s: %s%% (GPA %.2f) %s",
			result.Semester, label, formatMarks(result.Percentage), result.GPA, result.Remarks))
	}

	return s.render(f, data, "Transcript - "+student.Name, "transcript-"+slug(student.Name))
}

var marksSheetHeaders = []string{"Student", "Email", "Marks", "Full Marks", "Pass Marks", "Status"}

// SubjectMarksSheet renders the marks of one subject for a course sitting.
func (s *ReportService) SubjectMarksSheet(ctx context.Context, query dto.SubjectMarksQuery, format string) (*Report, error) {
	f, err := parseReportFormat(format)
	if err != nil {
		return nil, err
	}
	rows, err := s.results.SubjectMarkRows(ctx, query)
	if err != nil {
		return nil, err
	}

	examType := models.ExamType(query.ExamType)
	data := export.Dataset{
		Headers: marksSheetHeaders,
		Rows:    make([][]string, 0, len(rows)),
		Notes:   []string{fmt.Sprintf("Semester %d, %s", query.Semester, examType.Label())},
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, []string{
			row.StudentName,
			row.StudentEmail,
			formatMarks(row.MarksObtained),
			formatMarks(row.FullMarks),
			formatMarks(row.PassMarks),
			string(row.Status),
		})
	}

	name := fmt.Sprintf("marks-%s-sem%d-%s", slug(query.SubjectName), query.Semester, query.ExamType)
	return s.render(f, data, "Marks - "+query.SubjectName, name)
}

func (s *ReportService) render(f export.Format, data export.Dataset, title, basename string) (*Report, error) {
	var (
		body []byte
		err  error
	)
	switch f {
	case export.FormatCSV:
		body, err = s.csv.Render(data)
	default:
		body, err = s.pdf.Render(data, title)
	}
	if err != nil {
		s.logger.Error("report render failed", zap.String("report", basename), zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return &Report{
		Filename:    basename + "." + f.Extension(),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func parseReportFormat(raw string) (export.Format, error) {
	f, err := export.ParseFormat(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be pdf or csv")
	}
	return f, nil
}

func formatMarks(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func slug(value string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
