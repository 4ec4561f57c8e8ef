package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct ตรวจสอบ struct ตาม validate tags
func ValidateStruct(s any) error {
	return validate.Struct(s)
}

// ValidationFieldError รายละเอียด field ที่ไม่ผ่าน validation
type ValidationFieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// GetValidationErrors แปลง validator error เป็น list ที่ client อ่านได้
func GetValidationErrors(err error) []ValidationFieldError {
	var result []ValidationFieldError

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationFieldError{{Field: "", Tag: "", Message: err.Error()}}
	}

	for _, fieldErr := range validationErrors {
		result = append(result, ValidationFieldError{
			Field:   strings.ToLower(fieldErr.Field()),
			Tag:     fieldErr.Tag(),
			Message: validationMessage(fieldErr),
		})
	}

	return result
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}
