package service

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
)

var simpleEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NewValidator returns a validator with the project's custom rules.
// simpleemail accepts anything shaped like local@domain.tld.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return simpleEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

// signupValidationError maps the first failing rule to the message shown to
// the user.
func signupValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return appErrors.Clone(appErrors.ErrValidation, "All fields are required")
		}
	}
	switch fieldErrs[0].Tag() {
	case "simpleemail":
		return appErrors.Clone(appErrors.ErrValidation, "Invalid email format")
	case "min":
		return appErrors.Clone(appErrors.ErrValidation, "Password must be at least 6 characters")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
}
