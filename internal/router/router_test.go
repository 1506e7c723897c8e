package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-record-api/internal/handler"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/service"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	claims, ok := t[token]
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	handlers := Handlers{
		Auth:      handler.NewAuthHandler(nil),
		Course:    handler.NewCourseHandler(nil),
		Student:   handler.NewStudentHandler(nil),
		Exam:      handler.NewExamHandler(nil),
		Dashboard: handler.NewDashboardHandler(nil),
		Report:    handler.NewReportHandler(nil),
		Metrics:   handler.NewMetricsHandler(metrics, nil),
	}
	return New(handlers, Options{
		Authenticator: tokenTable{
			"student-token": {UserID: "s1", Role: models.RoleStudent},
		},
		Metrics: metrics,
	})
}

func request(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterProbesArePublic(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/metrics", "").Code)
}

func TestRouterGuardsApiRoutes(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		method string
		path   string
		token  string
		status int
	}{
		{http.MethodGet, "/api/courses", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/auth/me", "bogus", http.StatusUnauthorized},
		{http.MethodPost, "/api/courses", "student-token", http.StatusForbidden},
		{http.MethodPost, "/api/auth/register", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/students", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/students/s2", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/exams/student/s2", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/reports/students/s2/transcript", "student-token", http.StatusForbidden},
		{http.MethodPost, "/api/exams/bulk", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/metrics/summary", "student-token", http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := request(r, tc.method, tc.path, tc.token)
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
	}
}
