package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	ghanaPhoneRegex   = regexp.MustCompile(`^(\+?233|0?233|0)[1-9]\d{8}$`)
	trackingCodeRegex = regexp.MustCompile(`^GCX-\d{4}-(\d{6}|\d{8})$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("ghphone", func(fl validator.FieldLevel) bool {
		return ValidateGhanaPhone(fl.Field().String())
	})
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateGhanaPhone accepts 0XXXXXXXXX, 233XXXXXXXXX and +233XXXXXXXXX.
func ValidateGhanaPhone(phone string) bool {
	return ghanaPhoneRegex.MatchString(strings.ReplaceAll(phone, " ", ""))
}

func ValidateTrackingCode(code string) bool {
	return trackingCodeRegex.MatchString(code)
}

// AccountNameMatches compares a bank account name with the business name
// ignoring case, spacing and punctuation.
func AccountNameMatches(accountName, businessName string) bool {
	a, b := alnumLower(accountName), alnumLower(businessName)
	return a != "" && a == b
}

func alnumLower(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}

func FormatValidationError(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			field := strings.ToLower(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				errors[field] = fmt.Sprintf("%s is required", field)
			case "email":
				errors[field] = "Invalid email format"
			case "ghphone":
				errors[field] = "Invalid Ghana phone number"
			case "oneof":
				errors[field] = fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
			case "min":
				errors[field] = fmt.Sprintf("%s must be at least %s characters", field, fieldError.Param())
			case "max":
				errors[field] = fmt.Sprintf("%s must be at most %s characters", field, fieldError.Param())
			case "numeric":
				errors[field] = fmt.Sprintf("%s must contain digits only", field)
			default:
				errors[field] = fmt.Sprintf("%s is invalid", field)
			}
		}
	}

	return errors
}
