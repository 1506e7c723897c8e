package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/repository"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
	"github.com/noah-isme/student-record-api/pkg/validation"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	List(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	SemesterUsage(ctx context.Context, courseID string, above int) (models.SemesterUsage, error)
	References(ctx context.Context, courseID string) (models.CourseReferences, error)
	Update(ctx context.Context, course *models.Course, previousTotal int) error
	Delete(ctx context.Context, id string, cascade bool) error
	AddSubject(ctx context.Context, subject *models.Subject) error
	UpdateSubject(ctx context.Context, subject *models.Subject) error
	DeleteSubject(ctx context.Context, subjectID string) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// CourseService manages courses and their curricula.
type CourseService struct {
	repo      courseRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Create registers a course with empty semesters 1..totalSemesters.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap("invalid course payload", err)
	}
	course := &models.Course{
		Name:           strings.TrimSpace(req.Name),
		Code:           strings.TrimSpace(req.Code),
		TotalSemesters: models.DefaultTotalSemesters,
	}
	if req.TotalSemesters != nil {
		course.TotalSemesters = *req.TotalSemesters
	}
	if err := s.ensureUnique(ctx, course.Name, course.Code, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "course already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateDashboard(ctx)
	return course, nil
}

// List returns every course with its curriculum.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns one course with its curriculum.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Update applies the present fields. Shrinking totalSemesters over semesters
// that still hold subjects or results needs confirm.
func (s *CourseService) Update(ctx context.Context, id string, req dto.UpdateCourseRequest, confirm bool) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap("invalid course payload", err)
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previousTotal := course.TotalSemesters
	name, code := course.Name, course.Code
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		code = strings.TrimSpace(*req.Code)
	}
	if name == "" || code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name and code cannot be empty")
	}
	checkName, checkCode := "", ""
	if name != course.Name {
		checkName = name
	}
	if code != course.Code {
		checkCode = code
	}
	if err := s.ensureUnique(ctx, checkName, checkCode, course.ID); err != nil {
		return nil, err
	}
	course.Name, course.Code = name, code

	if req.TotalSemesters != nil && *req.TotalSemesters < previousTotal {
		usage, err := s.repo.SemesterUsage(ctx, course.ID, *req.TotalSemesters)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect semesters")
		}
		if !usage.Empty() && !confirm {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf(
				"reducing totalSemesters from %d to %d removes %d subjects and %d exam results; retry with confirm=true",
				previousTotal, *req.TotalSemesters, usage.Subjects, usage.ExamResults))
		}
	}
	if req.TotalSemesters != nil {
		course.TotalSemesters = *req.TotalSemesters
	}

	if err := s.repo.Update(ctx, course, previousTotal); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "course already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateDashboard(ctx)
	return s.Get(ctx, course.ID)
}

// Delete removes a course. Referenced courses need cascade.
func (s *CourseService) Delete(ctx context.Context, id string, cascade bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.References(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect course references")
	}
	if refs.Any() && !cascade {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf(
			"course is referenced by %d students and %d exam results; retry with cascade=true",
			refs.Students, refs.ExamResults))
	}
	if err := s.repo.Delete(ctx, id, cascade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateDashboard(ctx)
	return nil
}

// AddSubject appends a subject to a semester and returns the updated course.
func (s *CourseService) AddSubject(ctx context.Context, courseID string, req dto.AddSubjectRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap("invalid subject payload", err)
	}
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.FindSemester(req.Semester) == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
	}
	if course.HasSubjectCode(req.Code, "") {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "subject code already exists")
	}

	subject := &models.Subject{
		CourseID:    course.ID,
		Semester:    req.Semester,
		Name:        strings.TrimSpace(req.Name),
		Code:        req.Code,
		CreditHours: models.DefaultCreditHours,
		FullMarks:   models.DefaultFullMarks,
		PassMarks:   models.DefaultPassMarks,
	}
	if req.CreditHours != nil {
		subject.CreditHours = *req.CreditHours
	}
	if req.FullMarks != nil {
		subject.FullMarks = *req.FullMarks
	}
	if req.PassMarks != nil {
		subject.PassMarks = *req.PassMarks
	}
	subject.FullMarks, subject.PassMarks = models.RoundMarks(subject.FullMarks), models.RoundMarks(subject.PassMarks)
	if subject.FullMarks <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fullMarks must be at least 0.01")
	}
	if subject.PassMarks > subject.FullMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passMarks cannot exceed fullMarks")
	}

	if err := s.repo.AddSubject(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "subject code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add subject")
	}
	return s.Get(ctx, course.ID)
}

// UpdateSubject edits the subject identified by semester and its current code.
func (s *CourseService) UpdateSubject(ctx context.Context, courseID string, semester int, code string, req dto.UpdateSubjectRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap("invalid subject payload", err)
	}
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.FindSemester(semester) == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
	}
	current := course.FindSubject(semester, code)
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}

	updated := *current
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil && *req.Code != current.Code {
		if course.HasSubjectCode(*req.Code, current.ID) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "subject code already exists")
		}
		updated.Code = *req.Code
	}
	if req.CreditHours != nil {
		updated.CreditHours = *req.CreditHours
	}
	if req.FullMarks != nil {
		updated.FullMarks = *req.FullMarks
	}
	if req.PassMarks != nil {
		updated.PassMarks = *req.PassMarks
	}
	updated.FullMarks, updated.PassMarks = models.RoundMarks(updated.FullMarks), models.RoundMarks(updated.PassMarks)
	if updated.FullMarks <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fullMarks must be at least 0.01")
	}
	if updated.PassMarks > updated.FullMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passMarks cannot exceed fullMarks")
	}

	if err := s.repo.UpdateSubject(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "subject code already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return s.Get(ctx, course.ID)
}

// DeleteSubject removes the subject identified by semester and code.
func (s *CourseService) DeleteSubject(ctx context.Context, courseID string, semester int, code string) (*models.Course, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.FindSemester(semester) == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
	}
	subject := course.FindSubject(semester, code)
	if subject == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if err := s.repo.DeleteSubject(ctx, subject.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return s.Get(ctx, course.ID)
}

func (s *CourseService) ensureUnique(ctx context.Context, name, code, excludeID string) error {
	if name != "" {
		exists, err := s.repo.ExistsByName(ctx, name, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicate, "course already exists")
		}
	}
	if code != "" {
		exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicate, "course code already exists")
		}
	}
	return nil
}

func (s *CourseService) invalidateDashboard(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, dashboardCachePattern)
	}
}
