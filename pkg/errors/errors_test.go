package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	got := FromError(cause)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, FromError(nil))
}

func TestFromErrorFindsWrappedError(t *testing.T) {
	notFound := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "course not found")

	got := FromError(fmt.Errorf("load: %w", notFound))
	assert.Same(t, notFound, got)
	assert.Equal(t, "course not found: sql: no rows in result set", got.Error())
}

func TestIsComparesCodeAndStatus(t *testing.T) {
	assert.True(t, Is(Clone(ErrDuplicate, "email already registered"), ErrDuplicate))
	assert.False(t, Is(ErrDuplicate, ErrConflict))
	assert.False(t, Is(errors.New("plain"), ErrInternal))
}

func TestWithFieldsDoesNotMutateSentinel(t *testing.T) {
	got := ErrValidation.WithFields(map[string]string{"email": "email is required"})

	assert.Equal(t, "email is required", got.Fields["email"])
	assert.Nil(t, ErrValidation.Fields)
	assert.Same(t, ErrValidation, ErrValidation.WithFields(nil))
}

func TestPublicMasksServerErrors(t *testing.T) {
	internal := Wrap(errors.New("pq: deadlock"), "DB_ERROR", http.StatusServiceUnavailable, "query failed")

	public := internal.Public()
	assert.Equal(t, ErrInternal.Code, public.Code)
	assert.Equal(t, ErrInternal.Message, public.Message)
	assert.Equal(t, http.StatusServiceUnavailable, public.Status)
	assert.Nil(t, public.Err)

	forbidden := Clone(ErrForbidden, "students may only view their own results")
	assert.Same(t, forbidden, forbidden.Public())
}
