package form

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalid matches any ValidationErrors via errors.Is.
	ErrInvalid = errors.New("form: validation failed")

	// ErrBusy is returned when a submit is already running.
	ErrBusy = errors.New("form: submit in progress")
)

// ValidationError is a single field failure.
type ValidationError struct {
	Field string // field name
	Value string // the rejected raw value
	Key   string // i18n error key
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Key)
	}
	return e.Key
}

// ValidationErrors lists every failing field of a submit.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalid
}
