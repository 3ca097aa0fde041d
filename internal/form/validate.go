package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every rule a draft breaks.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid invoice: " + strings.Join(e.Problems, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the draft before it is sent to the API: at least one
// item, no negative numbers and percentages of at most 100.
func (d Draft) Validate() error {
	if d.IsEdit() && d.ID == "" {
		return ErrMissingID
	}
	err := validatorInstance().Struct(d.Invoice)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate invoice: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Problems = append(out.Problems, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Invoice.")
	switch fe.Tag() {
	case "min":
		if fe.Field() == "items" {
			return "at least one item is required"
		}
		return field + " is too short"
	case "gte":
		return field + " must not be negative"
	case "lte":
		return field + " must be at most " + fe.Param()
	default:
		return field + " is invalid"
	}
}
