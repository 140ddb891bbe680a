package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate     = newValidate()
	reBusinessID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._/-]*$`)
)

func newValidate() *validator.Validate {
	v := validator.New()
	// code: supplier codes, SKUs and PO numbers. Letters, digits and simple separators.
	_ = v.RegisterValidation("code", func(fl validator.FieldLevel) bool {
		return reBusinessID.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError represents one field failing its rule.
type ValidationError struct {
	Field string
	Rule  string
	Value any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("field '%s' with value '%v' fails '%s'", e.Field, e.Value, e.Rule)
}

// ValidateStruct checks validate tags on s. The result is a VALIDATION_ERROR
// wrapping ErrValidation and one ValidationError per failing field.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError("VALIDATION_ERROR", "cannot validate", errors.Join(ErrValidation, err))
	}
	errs := []error{ErrValidation}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, ValidationError{Field: fe.Field(), Rule: fe.Tag(), Value: fe.Value()})
		fields = append(fields, fe.Field())
	}
	return NewAppError("VALIDATION_ERROR", "invalid "+strings.Join(fields, ", "), errors.Join(errs...))
}

// FieldErrors lists the failing fields of an error built by ValidateStruct.
func FieldErrors(err error) []ValidationError {
	var joined interface{ Unwrap() []error }
	var out []ValidationError
	var app *AppError
	if !errors.As(err, &app) || !errors.As(app.Cause, &joined) {
		return nil
	}
	for _, e := range joined.Unwrap() {
		if ve, ok := e.(ValidationError); ok {
			out = append(out, ve)
		}
	}
	return out
}
