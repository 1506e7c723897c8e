package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

const (
	digitsTag  = "digits"
	digitsText = "{0} must contain only numbers"
)

var (
	digitsRegex = regexp.MustCompile(`^\d+$`)

	// Translator renders validator.FieldError values as english sentences.
	Translator ut.Translator
)

func init() {
	english := en.New()
	uni := ut.New(english, english)
	Translator, _ = uni.GetTranslator("en")
}

// New returns a validator that reports JSON field names and understands the
// custom tags used by request payloads.
func New() *validator.Validate {
	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, Translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(digitsTag, func(fl validator.FieldLevel) bool {
		return IsDigits(fl.Field().String())
	})
	_ = validate.RegisterTranslation(digitsTag, Translator,
		func(t ut.Translator) error { return t.Add(digitsTag, digitsText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(digitsTag, fe.Field())
			return s
		},
	)

	return validate
}

// IsDigits reports whether value is a non-empty run of ASCII digits.
func IsDigits(value string) bool {
	return digitsRegex.MatchString(value)
}

// Fields maps each failing field to its translated message.
func Fields(err error) map[string]string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Translate(Translator)
	}
	return out
}

// Message flattens the translated field errors into one sentence list.
func Message(prefix string, err error) string {
	fields := Fields(err)
	if len(fields) == 0 {
		return prefix
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Wrap converts a validator failure into a VALIDATION_ERROR carrying the
// per-field messages.
func Wrap(prefix string, err error) *appErrors.Error {
	wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, Message(prefix, err))
	return wrapped.WithFields(Fields(err))
}
