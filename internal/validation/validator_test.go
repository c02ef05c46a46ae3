package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/validation"
)

type testBookInput struct {
	Title     string   `json:"title" validate:"required,notblank,max=16"`
	Published int      `json:"published" validate:"gte=-3000,lte=3000"`
	Genres    []string `json:"genres" validate:"max=3,dive,notblank"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testBookInput{
		Title:     "Dune",
		Published: 1965,
		Genres:    []string{"classic", "scifi"},
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name        string
		in          testBookInput
		wantField   string
		wantMessage string
		wantArgs    any
	}{
		{
			name:        "missing title",
			in:          testBookInput{Published: 1965},
			wantField:   "title",
			wantMessage: "title is required",
			wantArgs:    "",
		},
		{
			name:        "blank title",
			in:          testBookInput{Title: "   ", Published: 1965},
			wantField:   "title",
			wantMessage: "title must not be blank",
			wantArgs:    "   ",
		},
		{
			name:        "title too long",
			in:          testBookInput{Title: strings.Repeat("a", 17), Published: 1965},
			wantField:   "title",
			wantMessage: "title must not exceed 16 characters",
			wantArgs:    strings.Repeat("a", 17),
		},
		{
			name:        "year out of range",
			in:          testBookInput{Title: "Dune", Published: 4000},
			wantField:   "published",
			wantMessage: "published must be less than or equal to 3000",
			wantArgs:    4000,
		},
		{
			name:        "too many genres",
			in:          testBookInput{Title: "Dune", Genres: []string{"a", "b", "c", "d"}},
			wantField:   "genres",
			wantMessage: "genres must not contain more than 3 items",
		},
		{
			name:        "blank genre",
			in:          testBookInput{Title: "Dune", Genres: []string{"classic", " "}},
			wantField:   "genres[1]",
			wantMessage: "genres[1] must not be blank",
			wantArgs:    " ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			require.Error(t, err)

			var domErr *domainerrors.Error
			require.ErrorAs(t, err, &domErr)
			assert.Equal(t, domainerrors.CodeValidationFailed, domErr.Code)
			assert.Equal(t, tt.wantMessage, domErr.Message)

			details, ok := domErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)

			if tt.wantArgs != nil {
				assert.Equal(t, tt.wantArgs, domErr.InvalidArgs)
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(testBookInput{Published: 1965})
	require.Error(t, err)

	// Should use JSON tag name "title", not struct field name "Title"
	assert.Contains(t, err.Error(), "title")
	assert.NotContains(t, err.Error(), "Title")
}

func TestValidator_NonStruct(t *testing.T) {
	v := validation.New()

	err := v.Validate("not a struct")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainerrors.ErrValidationFailed)
}
