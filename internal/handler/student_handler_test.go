package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type fakeStudentSrv struct {
	filter   models.StudentFilter
	identity models.Identity
	update   dto.UpdateStudentRequest
}

func (f *fakeStudentSrv) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	f.filter = filter
	return []models.Student{{ID: "s1", Name: "Asha"}}, nil
}

func (f *fakeStudentSrv) Batches(ctx context.Context) ([]string, error) {
	return []string{"2081", "2080"}, nil
}

func (f *fakeStudentSrv) Get(ctx context.Context, identity models.Identity, id string) (*models.StudentProfile, error) {
	f.identity = identity
	if !identity.CanAccessStudent(id) {
		return nil, appErrors.ErrForbidden
	}
	return &models.StudentProfile{ID: id}, nil
}

func (f *fakeStudentSrv) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.StudentProfile, error) {
	f.update = req
	return &models.StudentProfile{ID: id}, nil
}

func (f *fakeStudentSrv) Delete(ctx context.Context, id string) error {
	return nil
}

func TestStudentHandlerListTrimsFilters(t *testing.T) {
	srv := &fakeStudentSrv{}
	handler := NewStudentHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/students?course=c1&batch=%202081%20", "")
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StudentFilter{CourseID: "c1", Batch: "2081"}, srv.filter)
}

func TestStudentHandlerGetUsesCaller(t *testing.T) {
	srv := &fakeStudentSrv{}
	handler := NewStudentHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/students/s2", "")
	c.Params = gin.Params{{Key: "id", Value: "s2"}}
	asUser(c, "s1", models.RoleStudent)
	handler.Get(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "s1", srv.identity.UserID)

	c, rec = newTestContext(http.MethodGet, "/students/s2", "")
	c.Params = gin.Params{{Key: "id", Value: "s2"}}
	handler.Get(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentHandlerUpdateKeepsEmptyCourse(t *testing.T) {
	srv := &fakeStudentSrv{}
	handler := NewStudentHandler(srv)

	c, rec := newTestContext(http.MethodPut, "/students/s1", `{"course":""}`)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Update(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.update.CourseID)
	assert.Equal(t, "", *srv.update.CourseID)
	assert.Nil(t, srv.update.Name)
}
