package circulation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	isbnPattern  = regexp.MustCompile(`^(\d{9}[\dX]|\d{13})$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("catalog_isbn", func(fl validator.FieldLevel) bool {
		return isbnPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone_number", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("catalog_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing check character.
func NormalizeISBN(isbn string) string {
	r := strings.NewReplacer("-", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(isbn)))
}

func ValidISBN(isbn string) bool {
	return isbnPattern.MatchString(NormalizeISBN(isbn))
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fromValidator(err)
	}
	return nil
}
