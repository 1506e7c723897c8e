package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type samplePayload struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,digits"`
}

func TestNewUsesJSONNamesAndDigitsTag(t *testing.T) {
	v := New()

	err := v.Struct(samplePayload{Code: "CS101"})
	require.Error(t, err)

	fields := Fields(err)
	assert.Contains(t, fields, "name")
	assert.Equal(t, "code must contain only numbers", fields["code"])
}

func TestMessageIsSortedAndPrefixed(t *testing.T) {
	v := New()
	err := v.Struct(samplePayload{Code: "x"})

	msg := Message("invalid subject payload", err)
	assert.Equal(t, "invalid subject payload: code must contain only numbers; name is a required field", msg)
}

func TestIsDigits(t *testing.T) {
	assert.True(t, IsDigits("101"))
	assert.False(t, IsDigits(""))
	assert.False(t, IsDigits("10a"))
	assert.False(t, IsDigits("-1"))
}

func TestWrapCarriesFields(t *testing.T) {
	err := New().Struct(samplePayload{Name: "Maths", Code: "1a"})

	wrapped := Wrap("invalid subject payload", err)
	assert.True(t, appErrors.Is(wrapped, appErrors.ErrValidation))
	assert.Equal(t, map[string]string{"code": "code must contain only numbers"}, wrapped.Fields)
}
