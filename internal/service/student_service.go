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

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	Batches(ctx context.Context) ([]string, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	DeleteStudent(ctx context.Context, id string) error
}

// StudentService exposes student records to admins and to the students themselves.
type StudentService struct {
	repo      studentRepository
	courses   courseFinder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, courses courseFinder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, courses: courses, cache: cache, validator: validate, logger: logger}
}

// List returns students matching the optional course and batch filters.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	students, err := s.repo.ListStudents(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, nil
}

// Batches returns the distinct batches, newest first.
func (s *StudentService) Batches(ctx context.Context) ([]string, error) {
	batches, err := s.repo.Batches(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	if batches == nil {
		batches = []string{}
	}
	return batches, nil
}

// Get returns a student with their course curriculum. Students may only read themselves.
func (s *StudentService) Get(ctx context.Context, identity models.Identity, id string) (*models.StudentProfile, error) {
	if !identity.CanAccessStudent(id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to view this student")
	}
	user, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := &models.StudentProfile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Batch:     user.Batch,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.CourseID != nil && s.courses != nil {
		course, err := s.courses.FindByID(ctx, *user.CourseID)
		switch {
		case err == nil:
			profile.Course = course
		case errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("student references missing course", zap.String("student_id", user.ID), zap.String("course_id", *user.CourseID))
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
	}
	return profile, nil
}

// Update applies the present profile fields.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap("invalid student payload", err)
	}
	user, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Batch != nil {
		user.Batch = nonEmpty(req.Batch)
	}
	if req.CourseID != nil {
		user.CourseID = nonEmpty(req.CourseID)
		if user.CourseID != nil && s.courses != nil {
			if _, err := s.courses.FindByID(ctx, *user.CourseID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrValidation, "course does not exist")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
			}
		}
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.invalidateDashboard(ctx)
	return s.Get(ctx, models.Identity{Role: models.RoleAdmin}, id)
}

// Delete removes a student together with their exam results.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.findStudent(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteStudent(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidateDashboard(ctx)
	return nil
}

func (s *StudentService) findStudent(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return user, nil
}

func (s *StudentService) invalidateDashboard(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, dashboardCachePattern)
	}
}
