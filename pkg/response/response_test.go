package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestJSONOmitsEmptyMeta(t *testing.T) {
	c, rec := newContext()
	JSON(c, http.StatusOK, gin.H{"id": "c1"}, map[string]interface{}{})

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":{"id":"c1"}}`, rec.Body.String())
}

func TestErrorKeepsValidationFields(t *testing.T) {
	c, rec := newContext()
	err := appErrors.Clone(appErrors.ErrValidation, "invalid course payload").
		WithFields(map[string]string{"code": "code is required"})

	Error(c, err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, c.IsAborted())
	assert.Len(t, c.Errors, 1)

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "code is required", body.Error.Fields["code"])
}

func TestErrorHidesInternalDetails(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.Wrap(errors.New("pq: relation missing"), appErrors.ErrInternal.Code, 500, "failed to load course"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error","status":500}}`, rec.Body.String())
}

func TestAttachment(t *testing.T) {
	c, rec := newContext()
	Attachment(c, "transcript-asha.csv", "text/csv; charset=utf-8", []byte("a,b\n"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="transcript-asha.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}
