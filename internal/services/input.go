package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bodega/internal/domain"
)

var inputs = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// lets decimals take numeric tags like gte=0
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

var tagMessages = map[string]string{
	"required": "is required",
	"gt":       "must be greater than zero",
	"gte":      "must not be negative",
	"max":      "is too long",
	"number":   "must contain only digits",
}

// checkInput runs struct tag validation and reports the first failure as a
// *domain.ValidationError.
func checkInput(in any) error {
	err := inputs.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Field: "input", Message: err.Error()}
	}
	fe := verrs[0]
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		msg = "failed " + fe.Tag()
	}
	return &domain.ValidationError{Field: strings.ToLower(fe.Field()), Message: msg}
}
