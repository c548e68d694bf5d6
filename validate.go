package tally

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/tally/invoice"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and converts failures into
// ValidationError values.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationError{Field: "input", Message: err.Error()}
	}

	var multi MultiError
	for _, fe := range verrs {
		multi.Add(ValidationError{Field: fieldPath(fe), Message: describe(fe)})
	}
	if len(multi.Errors) == 1 {
		return multi.First()
	}
	return multi
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtefield":
		return "must not be before " + fe.Param()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// fromCalculator maps calculator field errors onto ValidationError.
func fromCalculator(err error) error {
	var fe *invoice.FieldError
	if errors.As(err, &fe) {
		return ValidationError{Field: fe.Field, Message: fe.Message}
	}
	return err
}
