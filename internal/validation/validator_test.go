package validation_test

import (
	"testing"

	domainerrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createAnnotationRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=highlight note bookmark"`
	Location string `json:"location" validate:"required,location"`
	Color    string `json:"color" validate:"max=32"`
}

func TestValidator_Valid(t *testing.T) {
	v := validation.New()

	err := v.Validate(createAnnotationRequest{
		BookID:   "book-1",
		Type:     "highlight",
		Location: "chapter_2:scroll_0.5",
	})
	assert.NoError(t, err)
}

func TestValidator_LocationTag(t *testing.T) {
	v := validation.New()

	err := v.Validate(createAnnotationRequest{
		BookID:   "book-1",
		Type:     "bookmark",
		Location: "page 12",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	fields := domainErr.Details.(map[string]string)
	assert.Contains(t, fields["location"], "position token")
}

func TestValidator_FieldErrors(t *testing.T) {
	v := validation.New()

	err := v.Validate(createAnnotationRequest{Type: "doodle"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

	// Details carry per-field messages keyed by JSON tag name.
	fields, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "book_id")
	assert.Contains(t, fields, "location")
	assert.Contains(t, fields["type"], "must be one of")
}

func TestValidator_UsesJSONTagNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(createAnnotationRequest{})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	fields := domainErr.Details.(map[string]string)
	assert.Contains(t, fields, "book_id")
	assert.NotContains(t, fields, "BookID")
}
