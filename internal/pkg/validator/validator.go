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
	// Credit transaction scene validation
	validate.RegisterValidation("scene", func(fl validator.FieldLevel) bool {
		scene := fl.Field().String()
		validScenes := []string{"signup_gift", "purchase", "admin_grant", "meme_generation", ""}
		for _, s := range validScenes {
			if scene == s {
				return true
			}
		}
		return false
	})

	// Credit pack validation (purchasable bundles)
	validate.RegisterValidation("credit_pack", func(fl validator.FieldLevel) bool {
		pack := fl.Field().String()
		validPacks := []string{"starter", "creator", "studio"}
		for _, p := range validPacks {
			if pack == p {
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
		case "url":
			errors[field] = "Invalid URL format"
		case "scene":
			errors[field] = "Invalid scene. Must be: signup_gift, purchase, admin_grant, or meme_generation"
		case "credit_pack":
			errors[field] = "Invalid pack. Must be: starter, creator, or studio"
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
