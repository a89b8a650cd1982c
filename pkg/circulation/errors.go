package circulation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"library_catalog/pkg/store"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound             = store.ErrNotFound
	ErrDuplicateKey         = store.ErrDuplicateKey
	ErrUnavailable          = errors.New("book is not available for reservation")
	ErrNotEligible          = errors.New("customer is not eligible for reservation")
	ErrInvalidTransition    = errors.New("invalid reservation transition")
	ErrRenewalLimitExceeded = errors.New("renewal limit exceeded")
	ErrConflict             = errors.New("concurrent update conflict")
	ErrValidation           = errors.New("validation failed")
)

// ValidationError reports malformed input field by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := "failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}

// Kind names the error kind of err for logs, metrics and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrRenewalLimitExceeded):
		return "renewal_limit_exceeded"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	default:
		return "internal"
	}
}
