package form

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/itp-portal/internal/phone"
)

// Error keys produced by the built-in rules.
const (
	KeyEmail         = "validation.email"
	KeyPhone         = "validation.phone"
	KeyMobile        = "validation.mobile"
	KeyPercentage    = "validation.percentage"
	KeyMinLength     = "validation.minLength"
	KeyFutureDate    = "validation.futureDate"
	KeyDateOrder     = "validation.dateOrder"
	KeyInvalidOption = "validation.invalidOption"
	KeyRange         = "validation.range"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("ro_phone", isRomanianPhone); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("ro_mobile", isRomanianMobile); err != nil {
		panic(err)
	}
	return v
}

func isRomanianPhone(fl validator.FieldLevel) bool {
	return phone.Valid(fl.Field().String())
}

func isRomanianMobile(fl validator.FieldLevel) bool {
	return phone.Mobile(fl.Field().String())
}

// Rules skip empty input; pair them with Required for mandatory fields.

// Email checks an e-mail address.
func Email[T any]() ValidateFunc[T] {
	return func(value string, _ T) string {
		value = strings.TrimSpace(value)
		if value == "" || validate.Var(value, "email") == nil {
			return ""
		}
		return KeyEmail
	}
}

// Phone checks a Romanian phone number, landline or mobile, in any accepted
// notation.
func Phone[T any]() ValidateFunc[T] {
	return func(value string, _ T) string {
		if strings.TrimSpace(value) == "" || validate.Var(value, "ro_phone") == nil {
			return ""
		}
		return KeyPhone
	}
}

// MobilePhone is Phone restricted to mobile numbers.
func MobilePhone[T any]() ValidateFunc[T] {
	return func(value string, _ T) string {
		switch {
		case strings.TrimSpace(value) == "" || validate.Var(value, "ro_mobile") == nil:
			return ""
		case phone.Valid(value):
			return KeyMobile
		}
		return KeyPhone
	}
}

// Percentage accepts 0 < p <= 100.
func Percentage[T any]() ValidateFunc[T] {
	return func(value string, _ T) string {
		value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
		if value == "" {
			return ""
		}
		p, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return KeyInvalidFormat
		}
		if validate.Var(p, "gt=0,lte=100") != nil {
			return KeyPercentage
		}
		return ""
	}
}

// MinLength requires at least n characters after trimming.
func MinLength[T any](n int) ValidateFunc[T] {
	tag := "min=" + strconv.Itoa(n)
	return func(value string, _ T) string {
		value = strings.TrimSpace(value)
		if value == "" || validate.Var(value, tag) == nil {
			return ""
		}
		return KeyMinLength
	}
}

// IntRange requires an integer within [lo, hi].
func IntRange[T any](lo, hi int) ValidateFunc[T] {
	tag := "gte=" + strconv.Itoa(lo) + ",lte=" + strconv.Itoa(hi)
	return func(value string, _ T) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return ""
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return KeyInvalidFormat
		}
		if validate.Var(n, tag) != nil {
			return KeyRange
		}
		return ""
	}
}

// FutureDate requires a date strictly after today. now defaults to time.Now.
func FutureDate[T any](now func() time.Time) ValidateFunc[T] {
	if now == nil {
		now = time.Now
	}
	return func(value string, _ T) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return ""
		}
		d, err := time.Parse(DateLayout, value)
		if err != nil {
			return KeyInvalidFormat
		}
		y, m, day := now().Date()
		today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		if !d.After(today) {
			return KeyFutureDate
		}
		return ""
	}
}

// NotBefore requires the date to be on or after the one other returns.
func NotBefore[T any](other func(T) time.Time) ValidateFunc[T] {
	return func(value string, all T) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return ""
		}
		d, err := time.Parse(DateLayout, value)
		if err != nil {
			return KeyInvalidFormat
		}
		if from := other(all); !from.IsZero() && d.Before(from) {
			return KeyDateOrder
		}
		return ""
	}
}

// OneOf restricts the value to the field's options.
func OneOf[T any](options []Option) ValidateFunc[T] {
	return func(value string, _ T) string {
		if value == "" {
			return ""
		}
		for _, o := range options {
			if o.Value == value {
				return ""
			}
		}
		return KeyInvalidOption
	}
}
