package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/repository"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/validation"
)

const defaultExamMaxRetries = 3

var errRetriesExhausted = errors.New("retries exhausted")

type examRepository interface {
	FindByKey(ctx context.Context, key models.ExamKey) (*models.ExamResult, error)
	Create(ctx context.Context, result *models.ExamResult) error
	Update(ctx context.Context, result *models.ExamResult, expectedRevision int) error
	SubjectMarks(ctx context.Context, filter models.SubjectMarksFilter) ([]models.SubjectMark, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ExamResult, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ExamServiceParams groups the collaborators of ExamService.
type ExamServiceParams struct {
	Results    examRepository
	Users      userFinder
	Courses    courseFinder
	Cache      cacheInvalidator
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	MaxRetries int
}

// ExamService records marks and serves result sheets.
type ExamService struct {
	results    examRepository
	users      userFinder
	courses    courseFinder
	cache      cacheInvalidator
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	maxRetries int
}

// NewExamService constructs an ExamService.
func NewExamService(params ExamServiceParams) *ExamService {
	validate := params.Validator
	if validate == nil {
		validate = validation.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := params.MaxRetries
	if retries <= 0 {
		retries = defaultExamMaxRetries
	}
	return &ExamService{
		results:    params.Results,
		users:      params.Users,
		courses:    params.Courses,
		cache:      params.Cache,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		maxRetries: retries,
	}
}

// SaveBulkMarks stores one subject's marks for every listed student. Entries
// succeed or fail on their own; the report lists the failures.
func (s *ExamService) SaveBulkMarks(ctx context.Context, req dto.BulkMarksRequest) (*dto.BulkMarksResult, error) {
	req.SubjectName = strings.TrimSpace(req.SubjectName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap("invalid marks payload", err)
	}

	fullMarks := models.DefaultFullMarks
	if req.FullMarks != nil {
		fullMarks = *req.FullMarks
	}
	passMarks := models.DefaultPassMarks
	if req.PassMarks != nil {
		passMarks = *req.PassMarks
	}
	fullMarks, passMarks = models.RoundMarks(fullMarks), models.RoundMarks(passMarks)
	if fullMarks <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fullMarks must be at least 0.01")
	}
	if passMarks > fullMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passMarks cannot exceed fullMarks")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if req.Semester > course.TotalSemesters {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is outside the course range")
	}

	result := &dto.BulkMarksResult{Failures: []dto.BulkMarksFailure{}}
	for _, entry := range req.Entries {
		key := models.ExamKey{
			StudentID: entry.StudentID,
			CourseID:  course.ID,
			Semester:  req.Semester,
			ExamType:  models.ExamType(req.ExamType),
		}
		if reason := s.saveEntry(ctx, key, req.SubjectName, *entry.Marks, fullMarks, passMarks); reason != "" {
			result.Failures = append(result.Failures, dto.BulkMarksFailure{StudentID: entry.StudentID, Reason: reason})
			continue
		}
		result.SuccessCount++
	}

	s.metrics.RecordMarksEntries(result.SuccessCount, len(result.Failures))
	if result.SuccessCount > 0 && s.cache != nil {
		s.cache.Invalidate(ctx, dashboardCachePattern)
	}
	s.logger.Info("bulk marks saved",
		zap.String("course_id", course.ID),
		zap.Int("semester", req.Semester),
		zap.String("exam_type", req.ExamType),
		zap.String("subject", req.SubjectName),
		zap.Int("saved", result.SuccessCount),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}

// saveEntry returns an empty string on success and the failure reason otherwise.
func (s *ExamService) saveEntry(ctx context.Context, key models.ExamKey, subject string, marks, fullMarks, passMarks float64) string {
	marks = models.RoundMarks(marks)
	if marks > fullMarks {
		return "marks exceed full marks"
	}
	student, err := s.users.FindByID(ctx, key.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "student not found"
		}
		s.logger.Error("failed to load student for marks", zap.String("student_id", key.StudentID), zap.Error(err))
		return "failed to load student"
	}
	if student.Role != models.RoleStudent {
		return "user is not a student"
	}

	if err := s.upsertMarks(ctx, key, subject, marks, fullMarks, passMarks); err != nil {
		if errors.Is(err, errRetriesExhausted) {
			s.logger.Warn("marks entry gave up after concurrent updates", zap.String("student_id", key.StudentID), zap.Int("retries", s.maxRetries))
			return "concurrent updates exceeded retry limit"
		}
		s.logger.Error("failed to save marks", zap.String("student_id", key.StudentID), zap.Error(err))
		return "failed to save marks"
	}
	return ""
}

func (s *ExamService) upsertMarks(ctx context.Context, key models.ExamKey, subject string, marks, fullMarks, passMarks float64) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.RecordRevisionRetry()
		}

		current, err := s.results.FindByKey(ctx, key)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			current = &models.ExamResult{
				StudentID: key.StudentID,
				CourseID:  key.CourseID,
				Semester:  key.Semester,
				ExamType:  key.ExamType,
				Results:   []models.SubjectResult{},
			}
			current.SetMarks(subject, marks, fullMarks, passMarks)
			err = s.results.Create(ctx, current)
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
		case err != nil:
			return err
		default:
			revision := current.Revision
			current.SetMarks(subject, marks, fullMarks, passMarks)
			err = s.results.Update(ctx, current, revision)
			if errors.Is(err, repository.ErrStaleRevision) {
				continue
			}
		}
		return err
	}
	return errRetriesExhausted
}

// GetSubjectMarks returns the saved marks of one subject keyed by student.
func (s *ExamService) GetSubjectMarks(ctx context.Context, query dto.SubjectMarksQuery) (*dto.SubjectMarksResponse, error) {
	rows, err := s.SubjectMarkRows(ctx, query)
	if err != nil {
		return nil, err
	}

	resp := &dto.SubjectMarksResponse{
		Marks: make(map[string]float64, len(rows)),
		Meta:  dto.SubjectMarksMeta{FullMarks: models.DefaultFullMarks, PassMarks: models.DefaultPassMarks},
	}
	for i, row := range rows {
		if i == 0 {
			resp.Meta = dto.SubjectMarksMeta{FullMarks: row.FullMarks, PassMarks: row.PassMarks}
		}
		resp.Marks[row.StudentID] = row.MarksObtained
	}
	return resp, nil
}

// SubjectMarkRows returns the detailed rows behind GetSubjectMarks, ordered by student name.
func (s *ExamService) SubjectMarkRows(ctx context.Context, query dto.SubjectMarksQuery) ([]models.SubjectMark, error) {
	query.SubjectName = strings.TrimSpace(query.SubjectName)
	if err := s.validator.Struct(query); err != nil {
		return nil, validation.Wrap("invalid subject marks query", err)
	}
	rows, err := s.results.SubjectMarks(ctx, models.SubjectMarksFilter{
		CourseID: query.CourseID,
		Semester: query.Semester,
		ExamType: models.ExamType(query.ExamType),
		Subject:  query.SubjectName,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject marks")
	}
	if rows == nil {
		rows = []models.SubjectMark{}
	}
	return rows, nil
}

// GetStudentResults lists a student's results ordered by semester then exam type.
func (s *ExamService) GetStudentResults(ctx context.Context, identity models.Identity, studentID string) ([]models.ExamResult, error) {
	if !identity.CanAccessStudent(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to view these results")
	}
	results, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}
	if results == nil {
		results = []models.ExamResult{}
	}
	return results, nil
}
