package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Group exchange split type
	validate.RegisterValidation("split_type", func(fl validator.FieldLevel) bool {
		st := fl.Field().String()
		for _, valid := range []string{"equal", "weighted", "custom"} {
			if st == valid {
				return true
			}
		}
		return false
	})

	// Group exchange participant role
	validate.RegisterValidation("participant_role", func(fl validator.FieldLevel) bool {
		role := fl.Field().String()
		return role == "provider" || role == "receiver"
	})

	// Transaction list direction filter
	validate.RegisterValidation("tx_direction", func(fl validator.FieldLevel) bool {
		d := fl.Field().String()
		for _, valid := range []string{"sent", "received", "all", ""} {
			if d == valid {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid id format"
		case "split_type":
			errors[field] = "Invalid split type. Must be: equal, weighted, or custom"
		case "participant_role":
			errors[field] = "Invalid role. Must be: provider or receiver"
		case "tx_direction":
			errors[field] = "Invalid direction. Must be: sent, received, or all"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
