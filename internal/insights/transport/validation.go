package transport

import (
	"regexp"

	pv "github.com/go-playground/validator/v10"

	"rightsize_backend/platform/validator"
)

// instanceTypePattern matches compute and database instance classes,
// e.g. "m5.xlarge", "t3.medium", "db.r6g.large".
var instanceTypePattern = regexp.MustCompile(`^(db\.)?[a-z][a-z0-9-]*\.[a-z0-9]+$`)

// RegisterValidations installs the insight-specific validation rules on
// the shared validator. Call once during module construction.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation("instancetype", validateInstanceType)
}

func validateInstanceType(fl pv.FieldLevel) bool {
	return instanceTypePattern.MatchString(fl.Field().String())
}
