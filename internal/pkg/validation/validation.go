package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/plans"
)

// MaxPrice is the largest amount the DECIMAL(12,2) price column holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// ValidPrice reports whether d is positive, fits the price column and has at
// most two decimal places.
func ValidPrice(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(MaxPrice) && d.Equal(d.Truncate(2))
}

// New returns a validator that understands decimal amounts, listing
// categories and plan names, and reports fields by their JSON names. It
// panics if a custom rule cannot be registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	rules := map[string]validator.Func{
		"listing_category": func(fl validator.FieldLevel) bool {
			return models.IsValidCategory(fl.Field().String())
		},
		"plan": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.TrimSpace(s) == "" || plans.Valid(s)
		},
		"price": func(fl validator.FieldLevel) bool {
			d, ok := decimalField(fl)
			return ok && ValidPrice(d)
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %q: %v", tag, err))
		}
	}

	return v
}

// decimalField reads the validated field as a decimal. The custom type func
// hands rules a float64, so the exact value is taken from the parent struct.
func decimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	parent := reflect.Indirect(fl.Parent())
	if parent.Kind() == reflect.Struct {
		f := parent.FieldByName(fl.StructFieldName())
		for f.IsValid() && f.Kind() == reflect.Ptr {
			if f.IsNil() {
				return decimal.Zero, false
			}
			f = f.Elem()
		}
		if f.IsValid() && f.CanInterface() {
			if d, ok := f.Interface().(decimal.Decimal); ok {
				return d, true
			}
		}
	}
	if fl.Field().Kind() == reflect.Float64 {
		return decimal.NewFromFloat(fl.Field().Float()), true
	}
	return decimal.Zero, false
}

// Struct validates s and converts violations into a validation error with
// per-field details.
func Struct(v *validator.Validate, s interface{}, message string) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(message)
	}

	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return apperrors.Validation(message).WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "listing_category":
		return "must be one of " + strings.Join(models.Categories, ", ")
	case "plan":
		return "must be one of free, basic, premium"
	case "price":
		return "must be greater than 0, at most " + MaxPrice.StringFixed(2) + ", with at most 2 decimal places"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
