package reporter

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-record-api/pkg/config"
)

func TestNewWithoutTokenIsNop(t *testing.T) {
	assert.IsType(t, Nop{}, New(nil))
	assert.IsType(t, Nop{}, New(&config.Config{Env: config.EnvDevelopment}))
}

func TestNewWithTokenUsesRollbar(t *testing.T) {
	rep := New(&config.Config{Env: config.EnvDevelopment, Rollbar: config.RollbarConfig{Token: "test-token"}})

	rb, ok := rep.(*Rollbar)
	require.True(t, ok)
	rb.client.SetEnabled(false)

	rep.Report(httptest.NewRequest("GET", "/api/courses", nil), errors.New("boom"))
	rep.Report(nil, errors.New("boom"))
	assert.NoError(t, rep.Close())
}
