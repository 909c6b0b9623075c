package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"go-marketplace/apperr"
)

var upiPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return upiPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidUPIID reports whether id looks like handle@provider.
func ValidUPIID(id string) bool {
	return upiPattern.MatchString(strings.TrimSpace(id))
}

// Validate checks the struct tags of s and returns the first failure as a
// field-scoped validation error.
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field(), messageFor(fe))
	}
	return apperr.Internal("validation failed", err)
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "len":
		return fmt.Sprintf("%s must be %s digits", fe.Field(), fe.Param())
	case "number", "numeric":
		return fmt.Sprintf("%s must contain only digits", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s is out of range", fe.Field())
	case "upi":
		return "invalid UPI ID"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
