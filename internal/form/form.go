// Package form is the form engine behind every create and edit drawer.
//
// A Controller[T] binds the raw string inputs of an HTML form to a value of
// type T through typed accessors, tracks each field's lifecycle and runs the
// required and custom validators.
//
// Field lifecycle:
//
//	pristine -> touched -> valid | invalid
//
// A field is validated only once it has been touched or the form has been
// submitted once. HandleSubmit always validates every field and never calls
// the submit callback while any field is invalid.
//
// Form lifecycle:
//
//	idle -> submitting -> idle
//
// Error values are i18n keys resolved by the renderer, never literal text.
package form

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Error keys produced by the engine itself.
const (
	KeyRequired      = "fieldRequired"
	KeyInvalidFormat = "validation.invalidFormat"
)

// Hidden inputs carrying lifecycle state between HTMX round trips.
const (
	TouchedParam   = "_touched"
	SubmittedParam = "_submitted"
)

// Status is the lifecycle state of one field.
type Status int

const (
	Pristine Status = iota
	Touched
	Valid
	Invalid
)

func (s Status) String() string {
	switch s {
	case Pristine:
		return "pristine"
	case Touched:
		return "touched"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is the lifecycle state of the whole form.
type State int

const (
	Idle State = iota
	Submitting
)

// InputType is the HTML control rendered for a field.
type InputType string

const (
	InputText     InputType = "text"
	InputEmail    InputType = "email"
	InputTel      InputType = "tel"
	InputNumber   InputType = "number"
	InputDate     InputType = "date"
	InputPassword InputType = "password"
	InputSelect   InputType = "select"
	InputCheckbox InputType = "checkbox"
	InputTextarea InputType = "textarea"
	InputHidden   InputType = "hidden"
)

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

// ValidateFunc checks a field's raw value against the whole form value and
// returns an error key, or "" when the value is acceptable.
type ValidateFunc[T any] func(value string, all T) string

// Field describes one form field.
type Field[T any] struct {
	Name        string
	Label       string
	Input       InputType
	Placeholder string
	Options     []Option
	Required    bool
	Validate    ValidateFunc[T]
	Bind        Accessor[T]
}

// Controller holds the state of one form instance.
// It is not safe for concurrent use.
type Controller[T any] struct {
	fields []Field[T]
	index  map[string]int

	values    T
	raw       map[string]string
	parseErr  map[string]bool
	errors    map[string]string
	touched   map[string]bool
	validated map[string]bool
	submitted bool
	state     State
}

// New creates a controller seeded with initial.
func New[T any](initial T, fields ...Field[T]) *Controller[T] {
	c := &Controller[T]{
		fields:    fields,
		index:     make(map[string]int, len(fields)),
		values:    initial,
		raw:       make(map[string]string, len(fields)),
		parseErr:  make(map[string]bool),
		errors:    make(map[string]string),
		touched:   make(map[string]bool),
		validated: make(map[string]bool),
	}
	for i, f := range fields {
		c.index[f.Name] = i
		if f.Bind.Get != nil {
			c.raw[f.Name] = f.Bind.Get(&c.values)
		}
	}
	return c
}

// Fields returns the field descriptors in declaration order.
func (c *Controller[T]) Fields() []Field[T] {
	return c.fields
}

// Field returns the descriptor for name.
func (c *Controller[T]) Field(name string) (Field[T], bool) {
	i, ok := c.index[name]
	if !ok {
		return Field[T]{}, false
	}
	return c.fields[i], true
}

// Values returns the bound value.
func (c *Controller[T]) Values() T {
	return c.values
}

// Value returns the raw input of a field.
func (c *Controller[T]) Value(name string) string {
	return c.raw[name]
}

// Errors returns a copy of the current error keys by field.
func (c *Controller[T]) Errors() map[string]string {
	out := make(map[string]string, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

// Error returns the error key of a field.
func (c *Controller[T]) Error(name string) string {
	return c.errors[name]
}

// SetError attaches an error key from outside, e.g. a backend rejection of a
// single field.
func (c *Controller[T]) SetError(name, key string) {
	if _, ok := c.index[name]; !ok {
		return
	}
	c.touched[name] = true
	c.validated[name] = true
	c.errors[name] = key
}

// SetFieldValue stores a raw input and binds it into the value. The field is
// revalidated only if it was touched or the form was submitted.
func (c *Controller[T]) SetFieldValue(name, raw string) error {
	i, ok := c.index[name]
	if !ok {
		return fmt.Errorf("form: unknown field %q", name)
	}
	f := c.fields[i]

	c.raw[name] = raw
	delete(c.parseErr, name)
	if f.Bind.Set != nil {
		if err := f.Bind.Set(&c.values, raw); err != nil {
			c.parseErr[name] = true
		}
	}

	if c.touched[name] || c.submitted {
		c.validate(f)
	}
	return nil
}

// Touch marks a field touched without validating it.
func (c *Controller[T]) Touch(name string) {
	if _, ok := c.index[name]; ok {
		c.touched[name] = true
	}
}

// Blur marks a field touched and validates it.
func (c *Controller[T]) Blur(name string) string {
	i, ok := c.index[name]
	if !ok {
		return ""
	}
	c.touched[name] = true
	return c.validate(c.fields[i])
}

// Status returns the lifecycle state of a field.
func (c *Controller[T]) Status(name string) Status {
	switch {
	case !c.touched[name] && !c.submitted:
		return Pristine
	case !c.validated[name]:
		return Touched
	case c.errors[name] != "":
		return Invalid
	default:
		return Valid
	}
}

// ValidateAll validates every field and reports whether all passed.
func (c *Controller[T]) ValidateAll() bool {
	ok := true
	for _, f := range c.fields {
		if c.validate(f) != "" {
			ok = false
		}
	}
	return ok
}

// IsValid reports whether every field would pass validation now. It does
// not change the displayed errors.
func (c *Controller[T]) IsValid() bool {
	for _, f := range c.fields {
		if c.check(f) != "" {
			return false
		}
	}
	return true
}

// IsSubmitting reports whether a submit callback is running.
func (c *Controller[T]) IsSubmitting() bool {
	return c.state == Submitting
}

// State returns the form lifecycle state.
func (c *Controller[T]) State() State {
	return c.state
}

// Submitted reports whether a submit was attempted.
func (c *Controller[T]) Submitted() bool {
	return c.submitted
}

// CanSubmit reports whether the submit button should be enabled.
func (c *Controller[T]) CanSubmit() bool {
	return !c.IsSubmitting() && c.IsValid()
}

// HandleSubmit validates every field and, if all pass, calls submit with
// the bound value. Validation failures are returned as ValidationErrors and
// submit is not called. Errors from submit are returned unchanged.
func (c *Controller[T]) HandleSubmit(ctx context.Context, submit func(context.Context, T) error) error {
	if c.IsSubmitting() {
		return ErrBusy
	}
	c.submitted = true
	if !c.ValidateAll() {
		return c.validationErrors()
	}

	c.state = Submitting
	defer func() { c.state = Idle }()
	return submit(ctx, c.values)
}

// Bind loads a posted form. Fields absent from the post keep their current
// value except checkboxes, which post nothing when unchecked. Touched fields
// listed in _touched are revalidated, and all fields when _submitted=1.
func (c *Controller[T]) Bind(form url.Values) {
	for _, f := range c.fields {
		if vals, ok := form[f.Name]; ok && len(vals) > 0 {
			_ = c.SetFieldValue(f.Name, vals[0])
		} else if f.Input == InputCheckbox {
			_ = c.SetFieldValue(f.Name, "")
		}
	}

	for _, v := range form[TouchedParam] {
		for _, name := range strings.Split(v, ",") {
			c.Touch(strings.TrimSpace(name))
		}
	}
	if form.Get(SubmittedParam) == "1" {
		c.submitted = true
	}

	for _, f := range c.fields {
		if c.touched[f.Name] || c.submitted {
			c.validate(f)
		}
	}
}

// TouchedNames returns the touched fields in declaration order, for the
// _touched hidden input.
func (c *Controller[T]) TouchedNames() []string {
	var out []string
	for _, f := range c.fields {
		if c.touched[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

func (c *Controller[T]) validate(f Field[T]) string {
	key := c.check(f)
	c.validated[f.Name] = true
	if key == "" {
		delete(c.errors, f.Name)
	} else {
		c.errors[f.Name] = key
	}
	return key
}

func (c *Controller[T]) check(f Field[T]) string {
	raw := c.raw[f.Name]
	if f.Required && strings.TrimSpace(raw) == "" {
		return KeyRequired
	}
	if c.parseErr[f.Name] {
		return KeyInvalidFormat
	}
	if f.Validate != nil {
		return f.Validate(raw, c.values)
	}
	return ""
}

func (c *Controller[T]) validationErrors() ValidationErrors {
	var errs ValidationErrors
	for _, f := range c.fields {
		if key := c.errors[f.Name]; key != "" {
			errs = append(errs, ValidationError{Field: f.Name, Value: c.raw[f.Name], Key: key})
		}
	}
	return errs
}

// Input is everything a template needs to render one control.
type Input struct {
	ID          string
	Name        string
	Label       string
	Type        InputType
	Value       string
	Placeholder string
	Options     []Option
	Required    bool
	Checked     bool
	Error       string
	Status      Status
}

// Register returns the render binding of a field.
func (c *Controller[T]) Register(name string) Input {
	f, ok := c.Field(name)
	if !ok {
		return Input{ID: "f-" + name, Name: name}
	}
	typ := f.Input
	if typ == "" {
		typ = InputText
	}
	raw := c.raw[name]
	return Input{
		ID:          "f-" + name,
		Name:        name,
		Label:       f.Label,
		Type:        typ,
		Value:       raw,
		Placeholder: f.Placeholder,
		Options:     f.Options,
		Required:    f.Required,
		Checked:     typ == InputCheckbox && isTrue(raw),
		Error:       c.errors[name],
		Status:      c.Status(name),
	}
}

// Inputs registers every field in declaration order.
func (c *Controller[T]) Inputs() []Input {
	out := make([]Input, len(c.fields))
	for i, f := range c.fields {
		out[i] = c.Register(f.Name)
	}
	return out
}
