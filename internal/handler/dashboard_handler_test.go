package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/middleware"
	"github.com/noah-isme/student-record-api/internal/models"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func asUser(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

type fakeDashboardSrv struct {
	stats *dto.DashboardStats
	hit   bool
	err   error
}

func (f *fakeDashboardSrv) Stats(context.Context) (*dto.DashboardStats, bool, error) {
	return f.stats, f.hit, f.err
}

func TestDashboardHandlerStatsReportsCacheHit(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{
		stats: &dto.DashboardStats{TotalStudents: 12, StudentsPerCourse: []dto.CourseCount{}},
		hit:   true,
	})

	c, rec := newTestContext(http.MethodGet, "/dashboard/stats", "")
	handler.Stats(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")

	var stats dto.DashboardStats
	require.NoError(t, json.Unmarshal(envelope.Data, &stats))
	assert.Equal(t, 12, stats.TotalStudents)
}

func TestDashboardHandlerStatsError(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("db down")})

	c, rec := newTestContext(http.MethodGet, "/dashboard/stats", "")
	handler.Stats(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
