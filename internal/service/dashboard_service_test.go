package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/repository"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type fakeDashboardRepo struct {
	calls      int
	batches    []dto.BatchCount
	examCounts []repository.ExamTypeCount
	err        error
}

func (f *fakeDashboardRepo) CountStudents(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func (f *fakeDashboardRepo) CountCourses(context.Context) (int, error) {
	return 1, nil
}

func (f *fakeDashboardRepo) StudentsPerCourse(context.Context) ([]dto.CourseCount, error) {
	return []dto.CourseCount{{Name: "BIM", Count: 2}, {Name: "Unassigned", Count: 1}}, nil
}

func (f *fakeDashboardRepo) AvgMarksPerCourse(context.Context) ([]dto.CourseAverage, error) {
	return nil, nil
}

func (f *fakeDashboardRepo) BatchDistribution(context.Context) ([]dto.BatchCount, error) {
	return f.batches, nil
}

func (f *fakeDashboardRepo) ExamTypeCounts(context.Context) ([]repository.ExamTypeCount, error) {
	return f.examCounts, nil
}

type mapCache struct {
	entries map[string]interface{}
	ttls    map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) bool {
	value, ok := c.entries[key]
	if !ok {
		return false
	}
	stats, ok := dest.(*dto.DashboardStats)
	if !ok {
		return false
	}
	*stats = *value.(*dto.DashboardStats)
	return true
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.entries[key] = value
	c.ttls[key] = ttl
}

func TestDashboardStatsComposesAggregates(t *testing.T) {
	repo := &fakeDashboardRepo{
		batches: []dto.BatchCount{{Batch: "2081", Count: 2}, {Batch: "Unknown", Count: 1}},
		examCounts: []repository.ExamTypeCount{
			{ExamType: models.ExamTypeBoard, Count: 4},
			{ExamType: models.ExamTypePreBoard, Count: 2},
		},
	}
	metrics := NewMetricsService()
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Metrics: metrics})

	stats, hit, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 1, stats.TotalCourses)
	assert.Len(t, stats.StudentsPerCourse, 2)
	assert.NotNil(t, stats.AvgMarksPerCourse)
	assert.Empty(t, stats.AvgMarksPerCourse)
	assert.Equal(t, "2081", stats.BatchDistribution[0].Batch)
	assert.Equal(t, []dto.NamedValue{{Name: "Board", Value: 4}, {Name: "Pre-Board", Value: 2}}, stats.ExamPerformance)
	assert.Equal(t, uint64(6), metrics.Snapshot().DBQueryCount)
}

func TestDashboardStatsServesFromCache(t *testing.T) {
	repo := &fakeDashboardRepo{}
	cache := newMapCache()
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Cache: cache, Config: DashboardServiceConfig{CacheTTL: time.Minute}})

	first, hit, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, time.Minute, cache.ttls[dashboardStatsKey])

	second, hit, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.TotalStudents, second.TotalStudents)
	assert.Equal(t, 1, repo.calls)
}

func TestDashboardStatsWrapsRepositoryErrors(t *testing.T) {
	repo := &fakeDashboardRepo{err: errors.New("db down")}
	cache := newMapCache()
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Cache: cache})

	_, _, err := svc.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, cache.entries)
}
