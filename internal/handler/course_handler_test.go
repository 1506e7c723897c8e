package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type fakeCourseSrv struct {
	confirm   bool
	cascade   bool
	semester  int
	code      string
	deleteErr error
}

func (f *fakeCourseSrv) Create(ctx context.Context, req dto.CreateCourseRequest) (*models.Course, error) {
	return &models.Course{ID: "course-1", Name: req.Name, Code: req.Code}, nil
}

func (f *fakeCourseSrv) List(ctx context.Context) ([]models.Course, error) {
	return []models.Course{}, nil
}

func (f *fakeCourseSrv) Get(ctx context.Context, id string) (*models.Course, error) {
	if id != "course-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return &models.Course{ID: id}, nil
}

func (f *fakeCourseSrv) Update(ctx context.Context, id string, req dto.UpdateCourseRequest, confirm bool) (*models.Course, error) {
	f.confirm = confirm
	return &models.Course{ID: id}, nil
}

func (f *fakeCourseSrv) Delete(ctx context.Context, id string, cascade bool) error {
	f.cascade = cascade
	return f.deleteErr
}

func (f *fakeCourseSrv) AddSubject(ctx context.Context, courseID string, req dto.AddSubjectRequest) (*models.Course, error) {
	return &models.Course{ID: courseID}, nil
}

func (f *fakeCourseSrv) UpdateSubject(ctx context.Context, courseID string, semester int, code string, req dto.UpdateSubjectRequest) (*models.Course, error) {
	f.semester, f.code = semester, code
	return &models.Course{ID: courseID}, nil
}

func (f *fakeCourseSrv) DeleteSubject(ctx context.Context, courseID string, semester int, code string) (*models.Course, error) {
	f.semester, f.code = semester, code
	return &models.Course{ID: courseID}, nil
}

func TestCourseHandlerCreateTagsAuditResource(t *testing.T) {
	handler := NewCourseHandler(&fakeCourseSrv{})

	c, rec := newTestContext(http.MethodPost, "/courses", `{"name":"BIM","code":"BIM"}`)
	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	id, ok := c.Get("audit_resource_id")
	assert.True(t, ok)
	assert.Equal(t, "course-1", id)
}

func TestCourseHandlerPassesQueryFlags(t *testing.T) {
	srv := &fakeCourseSrv{}
	handler := NewCourseHandler(srv)

	c, rec := newTestContext(http.MethodPut, "/courses/course-1?confirm=true", `{"totalSemesters":6}`)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	handler.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, srv.confirm)

	c, _ = newTestContext(http.MethodDelete, "/courses/course-1?cascade=1", "")
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.True(t, srv.cascade)

	srv.deleteErr = appErrors.Clone(appErrors.ErrConflict, "course has enrolled students")
	c, rec = newTestContext(http.MethodDelete, "/courses/course-1", "")
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, srv.cascade)
}

func TestCourseHandlerSubjectRoutes(t *testing.T) {
	srv := &fakeCourseSrv{}
	handler := NewCourseHandler(srv)

	c, rec := newTestContext(http.MethodPut, "/courses/course-1/subjects/2/101", `{"name":"Maths II"}`)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}, {Key: "semester", Value: "2"}, {Key: "code", Value: "101"}}
	handler.UpdateSubject(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, srv.semester)
	assert.Equal(t, "101", srv.code)

	c, rec = newTestContext(http.MethodDelete, "/courses/course-1/subjects/two/101", "")
	c.Params = gin.Params{{Key: "id", Value: "course-1"}, {Key: "semester", Value: "two"}, {Key: "code", Value: "101"}}
	handler.DeleteSubject(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCourseHandlerGetNotFound(t *testing.T) {
	handler := NewCourseHandler(&fakeCourseSrv{})

	c, rec := newTestContext(http.MethodGet, "/courses/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "NOT_FOUND", envelope.Error["code"])
}
