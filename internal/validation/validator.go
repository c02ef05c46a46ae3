// Package validation checks service inputs with validator/v10 and converts
// failures into VALIDATION_FAILED domain errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for catalog inputs.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages; they match the GraphQL argument names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
//
// The returned error carries every failing field in Details and the value
// of the first failing field in InvalidArgs.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		if _, seen := fieldErrors[e.Field()]; !seen {
			fieldErrors[e.Field()] = v.friendlyMessage(e)
		}
	}

	first := validationErrs[0]
	msg := fmt.Sprintf("%s %s", first.Field(), fieldErrors[first.Field()])

	return domainerrors.ValidationWithDetails(msg, fieldErrors).WithInvalidArgs(first.Value())
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "printascii":
		return "must contain only printable ASCII characters"
	default:
		return "is invalid"
	}
}
