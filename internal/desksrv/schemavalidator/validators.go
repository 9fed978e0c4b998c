package schemavalidator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Desk ids are controller-assigned identifiers, typically the desk's MAC
// address with separators.
const deskIDRegex = `^[a-zA-Z0-9]([:\-_a-zA-Z0-9]*[a-zA-Z0-9])?$`
const deskIDMaxLength = 64

var deskIDMatcher = regexp.MustCompile(deskIDRegex)

func deskIDValidator(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" || len(id) > deskIDMaxLength {
		return false
	}
	return deskIDMatcher.MatchString(id)
}

func registerValidators(v *validator.Validate) {
	v.RegisterValidation("deskid", deskIDValidator)
}
