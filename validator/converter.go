// Package validator converts ozzo-validation results into client-facing errors
package validator

import (
	"errors"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validatable is implemented by request bodies that check themselves
type Validatable interface {
	Validate() error
}

// ValidateRequest runs req.Validate and maps any failure to autherr.ErrValidation
func ValidateRequest(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return ConvertValidationError(validationErrs)
	}

	return autherr.ErrValidation.Wrap(err)
}

// ConvertValidationError attaches per-field messages under "fields"
func ConvertValidationError(validationErrs validation.Errors) error {
	fields := make(map[string]string, len(validationErrs))
	for field, fieldErr := range validationErrs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}

	return autherr.ErrValidation.WithData("fields", fields)
}
