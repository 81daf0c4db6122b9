package form

import (
	"strconv"
	"strings"
	"time"
)

// Accessor moves a field between its raw form string and its slot in T.
// Set receives the raw input; an error marks the field as badly formatted.
type Accessor[T any] struct {
	Get func(*T) string
	Set func(*T, string) error
}

// String binds a string field. Input is stored as typed, untrimmed.
func String[T any](field func(*T) *string) Accessor[T] {
	return Accessor[T]{
		Get: func(v *T) string { return *field(v) },
		Set: func(v *T, raw string) error {
			*field(v) = raw
			return nil
		},
	}
}

// Float binds a float64 field. Both "12.5" and "12,5" are accepted; empty
// input stores zero.
func Float[T any](field func(*T) *float64) Accessor[T] {
	return Accessor[T]{
		Get: func(v *T) string {
			f := *field(v)
			if f == 0 {
				return ""
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		},
		Set: func(v *T, raw string) error {
			raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
			if raw == "" {
				*field(v) = 0
				return nil
			}
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return err
			}
			*field(v) = f
			return nil
		},
	}
}

// Int binds an int field; empty input stores zero.
func Int[T any](field func(*T) *int) Accessor[T] {
	return Accessor[T]{
		Get: func(v *T) string {
			n := *field(v)
			if n == 0 {
				return ""
			}
			return strconv.Itoa(n)
		},
		Set: func(v *T, raw string) error {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				*field(v) = 0
				return nil
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return err
			}
			*field(v) = n
			return nil
		},
	}
}

// Bool binds a checkbox.
func Bool[T any](field func(*T) *bool) Accessor[T] {
	return Accessor[T]{
		Get: func(v *T) string {
			if *field(v) {
				return "on"
			}
			return ""
		},
		Set: func(v *T, raw string) error {
			*field(v) = isTrue(raw)
			return nil
		},
	}
}

// Date binds a calendar date in YYYY-MM-DD form; empty input stores the
// zero time.
func Date[T any](field func(*T) *time.Time) Accessor[T] {
	return Accessor[T]{
		Get: func(v *T) string {
			t := *field(v)
			if t.IsZero() {
				return ""
			}
			return t.Format(DateLayout)
		},
		Set: func(v *T, raw string) error {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				*field(v) = time.Time{}
				return nil
			}
			t, err := time.Parse(DateLayout, raw)
			if err != nil {
				return err
			}
			*field(v) = t
			return nil
		},
	}
}

// DateLayout is the value format of <input type="date">.
const DateLayout = "2006-01-02"

func isTrue(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
