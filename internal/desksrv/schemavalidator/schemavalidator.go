// Package schemavalidator holds the request validator and the custom
// validation rules of the desk service.
package schemavalidator

import "github.com/go-playground/validator/v10"

var requestValidator *validator.Validate

func V() *validator.Validate {
	if requestValidator == nil {
		requestValidator = validator.New(validator.WithRequiredStructEnabled())
		registerValidators(requestValidator)
	}
	return requestValidator
}
