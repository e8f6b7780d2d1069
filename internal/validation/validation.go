// Package validation runs struct-tag validation and reports the first
// failure as an apperr.ValidationError named by the field's json key.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"gst-checkout/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterAlias("pincode", "len=6,number,startsnotwith=0")
	// phone: optional leading +, then 10 to 13 digits
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := strings.TrimPrefix(fl.Field().String(), "+")
		if len(s) < 10 || len(s) > 13 {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
	return v
}

// Struct validates s. The reported field is prefix followed by the json
// path of the failing field below s, e.g. "shipping_address.city".
func Struct(s any, prefix string, cause error) error {
	return report(validate.Struct(s), prefix, cause)
}

// Var validates a single value against tag and reports it as field.
func Var(value any, tag, field string, cause error) error {
	err := validate.Var(value, tag)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	return &apperr.ValidationError{Field: field, Reason: reason(fields[0]), Cause: cause}
}

func report(err error, prefix string, cause error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	return &apperr.ValidationError{Field: prefix + path, Reason: reason(fe), Cause: cause}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		if fe.Param() == "0" {
			return "must be a positive integer"
		}
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "pincode":
		return "must be a 6 digit PIN code"
	case "phone":
		return "must be 10 to 13 digits"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
