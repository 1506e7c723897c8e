package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/repository"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

const (
	dashboardStatsKey     = "dashboard:stats"
	dashboardCachePattern = "dashboard:*"
)

type dashboardRepository interface {
	CountStudents(ctx context.Context) (int, error)
	CountCourses(ctx context.Context) (int, error)
	StudentsPerCourse(ctx context.Context) ([]dto.CourseCount, error)
	AvgMarksPerCourse(ctx context.Context) ([]dto.CourseAverage, error)
	BatchDistribution(ctx context.Context) ([]dto.BatchCount, error)
	ExamTypeCounts(ctx context.Context) ([]repository.ExamTypeCount, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo    dashboardRepository
	Cache   dashboardCache
	Metrics *MetricsService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// DashboardService composes the admin overview from independent aggregate reads.
type DashboardService struct {
	repo    dashboardRepository
	cache   dashboardCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:    params.Repo,
		cache:   params.Cache,
		metrics: params.Metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Stats returns the dashboard statistics and whether they came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardStats
		if s.cache.Get(ctx, dashboardStatsKey, &cached) {
			return &cached, true, nil
		}
	}

	stats, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, dashboardStatsKey, stats, s.cfg.CacheTTL)
	}
	return stats, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*dto.DashboardStats, error) {
	stats := &dto.DashboardStats{
		StudentsPerCourse: []dto.CourseCount{},
		AvgMarksPerCourse: []dto.CourseAverage{},
		BatchDistribution: []dto.BatchCount{},
		ExamPerformance:   []dto.NamedValue{},
	}

	var examCounts []repository.ExamTypeCount
	steps := []struct {
		label string
		run   func() error
	}{
		{"count_students", func() (err error) {
			stats.TotalStudents, err = s.repo.CountStudents(ctx)
			return err
		}},
		{"count_courses", func() (err error) {
			stats.TotalCourses, err = s.repo.CountCourses(ctx)
			return err
		}},
		{"students_per_course", func() error {
			rows, err := s.repo.StudentsPerCourse(ctx)
			if rows != nil {
				stats.StudentsPerCourse = rows
			}
			return err
		}},
		{"avg_marks_per_course", func() error {
			rows, err := s.repo.AvgMarksPerCourse(ctx)
			if rows != nil {
				stats.AvgMarksPerCourse = rows
			}
			return err
		}},
		{"batch_distribution", func() error {
			rows, err := s.repo.BatchDistribution(ctx)
			if rows != nil {
				stats.BatchDistribution = rows
			}
			return err
		}},
		{"exam_type_counts", func() (err error) {
			examCounts, err = s.repo.ExamTypeCounts(ctx)
			return err
		}},
	}

	for _, step := range steps {
		start := time.Now()
		err := step.run()
		s.metrics.ObserveDBQuery(step.label, time.Since(start))
		if err != nil {
			s.logger.Error("dashboard aggregate failed", zap.String("query", step.label), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard")
		}
	}

	for _, row := range examCounts {
		stats.ExamPerformance = append(stats.ExamPerformance, dto.NamedValue{Name: row.ExamType.Label(), Value: row.Count})
	}
	return stats, nil
}
