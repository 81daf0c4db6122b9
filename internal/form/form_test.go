package form

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discount struct {
	Name       string
	Percentage float64
	ValidFrom  time.Time
	ValidTo    time.Time
	Active     bool
	Email      string
}

func discountFields() []Field[discount] {
	return []Field[discount]{
		{
			Name:     "name",
			Label:    "Nume",
			Required: true,
			Validate: func(v string, _ discount) string {
				if len(v) < 2 {
					return "validation.minLength"
				}
				return ""
			},
			Bind: String(func(d *discount) *string { return &d.Name }),
		},
		{
			Name:     "percentage",
			Input:    InputNumber,
			Required: true,
			Validate: Percentage[discount](),
			Bind:     Float(func(d *discount) *float64 { return &d.Percentage }),
		},
		{
			Name:  "valid_from",
			Input: InputDate,
			Bind:  Date(func(d *discount) *time.Time { return &d.ValidFrom }),
		},
		{
			Name:     "valid_to",
			Input:    InputDate,
			Validate: NotBefore(func(d discount) time.Time { return d.ValidFrom }),
			Bind:     Date(func(d *discount) *time.Time { return &d.ValidTo }),
		},
		{
			Name:  "active",
			Input: InputCheckbox,
			Bind:  Bool(func(d *discount) *bool { return &d.Active }),
		},
		{
			Name:     "email",
			Input:    InputEmail,
			Validate: Email[discount](),
			Bind:     String(func(d *discount) *string { return &d.Email }),
		},
	}
}

func submitSpy() (func(context.Context, discount) error, *int, *discount) {
	calls := 0
	var got discount
	return func(_ context.Context, d discount) error {
		calls++
		got = d
		return nil
	}, &calls, &got
}

func TestHandleSubmit_RequiredBlocksSubmit(t *testing.T) {
	c := New(discount{}, discountFields()...)
	require.NoError(t, c.SetFieldValue("name", "   "))
	require.NoError(t, c.SetFieldValue("percentage", "10"))

	submit, calls, _ := submitSpy()
	err := c.HandleSubmit(context.Background(), submit)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, "fieldRequired", c.Errors()["name"])
	assert.Equal(t, 0, *calls)
	assert.Equal(t, Invalid, c.Status("name"))
	assert.Equal(t, Valid, c.Status("percentage"))

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "name", verrs[0].Field)
	assert.Equal(t, "fieldRequired", verrs[0].Key)
}

func TestHandleSubmit_CustomValidatorBlocksSubmit(t *testing.T) {
	c := New(discount{}, discountFields()...)
	require.NoError(t, c.SetFieldValue("name", "A"))
	require.NoError(t, c.SetFieldValue("percentage", "10"))

	submit, calls, _ := submitSpy()
	err := c.HandleSubmit(context.Background(), submit)

	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "validation.minLength", c.Error("name"))
	assert.Equal(t, 0, *calls)
}

func TestHandleSubmit_Success(t *testing.T) {
	c := New(discount{}, discountFields()...)
	c.Bind(url.Values{
		"name":       {"Primavara"},
		"percentage": {"12,5"},
		"valid_from": {"2026-03-01"},
		"valid_to":   {"2026-03-31"},
		"active":     {"on"},
	})

	submit, calls, got := submitSpy()
	require.NoError(t, c.HandleSubmit(context.Background(), submit))

	assert.Equal(t, 1, *calls)
	assert.Equal(t, "Primavara", got.Name)
	assert.InDelta(t, 12.5, got.Percentage, 1e-9)
	assert.True(t, got.Active)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), got.ValidTo)
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.Errors())
}

func TestHandleSubmit_IsSubmittingDuringCallback(t *testing.T) {
	c := New(discount{Name: "Vara", Percentage: 5}, discountFields()...)

	var during bool
	var canSubmitDuring bool
	err := c.HandleSubmit(context.Background(), func(context.Context, discount) error {
		during = c.IsSubmitting()
		canSubmitDuring = c.CanSubmit()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, during)
	assert.False(t, canSubmitDuring)
	assert.False(t, c.IsSubmitting())
}

func TestHandleSubmit_PropagatesSubmitError(t *testing.T) {
	c := New(discount{Name: "Vara", Percentage: 5}, discountFields()...)
	boom := errors.New("backend down")

	err := c.HandleSubmit(context.Background(), func(context.Context, discount) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Idle, c.State())
	assert.True(t, c.Submitted())
}

func TestValidationOnlyAfterTouchOrSubmit(t *testing.T) {
	c := New(discount{}, discountFields()...)

	require.NoError(t, c.SetFieldValue("name", "A"))
	assert.Empty(t, c.Error("name"))
	assert.Equal(t, Pristine, c.Status("name"))

	c.Touch("name")
	assert.Equal(t, Touched, c.Status("name"))

	assert.Equal(t, "validation.minLength", c.Blur("name"))
	assert.Equal(t, Invalid, c.Status("name"))

	require.NoError(t, c.SetFieldValue("name", "Ab"))
	assert.Empty(t, c.Error("name"))
	assert.Equal(t, Valid, c.Status("name"))

	// other fields stay silent
	assert.Empty(t, c.Error("percentage"))
	assert.Equal(t, Pristine, c.Status("percentage"))
}

func TestAfterSubmitEveryChangeRevalidates(t *testing.T) {
	c := New(discount{}, discountFields()...)
	_ = c.HandleSubmit(context.Background(), func(context.Context, discount) error { return nil })
	assert.Equal(t, "fieldRequired", c.Error("percentage"))

	require.NoError(t, c.SetFieldValue("percentage", "150"))
	assert.Equal(t, "validation.percentage", c.Error("percentage"))

	require.NoError(t, c.SetFieldValue("percentage", "abc"))
	assert.Equal(t, "validation.invalidFormat", c.Error("percentage"))
}

func TestIsValidDoesNotTouchErrors(t *testing.T) {
	c := New(discount{}, discountFields()...)
	assert.False(t, c.IsValid())
	assert.False(t, c.CanSubmit())
	assert.Empty(t, c.Errors())

	require.NoError(t, c.SetFieldValue("name", "Iarna"))
	require.NoError(t, c.SetFieldValue("percentage", "20"))
	assert.True(t, c.IsValid())
	assert.True(t, c.CanSubmit())
}

func TestBind_TouchedAndSubmittedParams(t *testing.T) {
	c := New(discount{}, discountFields()...)
	c.Bind(url.Values{
		"name":       {"X"},
		"percentage": {""},
		"_touched":   {"name"},
	})
	assert.Equal(t, "validation.minLength", c.Error("name"))
	assert.Empty(t, c.Error("percentage"))
	assert.Equal(t, []string{"name"}, c.TouchedNames())

	c = New(discount{}, discountFields()...)
	c.Bind(url.Values{"name": {"Toamna"}, "_submitted": {"1"}})
	assert.Empty(t, c.Error("name"))
	assert.Equal(t, "fieldRequired", c.Error("percentage"))
}

func TestBind_UncheckedCheckbox(t *testing.T) {
	c := New(discount{Active: true}, discountFields()...)
	assert.True(t, c.Register("active").Checked)

	c.Bind(url.Values{"name": {"Vara"}})
	assert.False(t, c.Values().Active)
	assert.False(t, c.Register("active").Checked)
}

func TestDateOrderUsesAllValues(t *testing.T) {
	c := New(discount{}, discountFields()...)
	c.Bind(url.Values{
		"valid_from": {"2026-05-10"},
		"valid_to":   {"2026-05-01"},
		"_touched":   {"valid_from,valid_to"},
	})
	assert.Equal(t, "validation.dateOrder", c.Error("valid_to"))
}

func TestRegister(t *testing.T) {
	initial := discount{Name: "Vara", Percentage: 15, ValidFrom: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	c := New(initial, discountFields()...)

	in := c.Register("percentage")
	assert.Equal(t, "f-percentage", in.ID)
	assert.Equal(t, "15", in.Value)
	assert.Equal(t, InputNumber, in.Type)
	assert.True(t, in.Required)

	assert.Equal(t, "2026-06-01", c.Register("valid_from").Value)
	assert.Equal(t, InputText, c.Register("name").Type)
	assert.Len(t, c.Inputs(), 6)
}

func TestSetFieldValue_UnknownField(t *testing.T) {
	c := New(discount{}, discountFields()...)
	assert.Error(t, c.SetFieldValue("nope", "x"))
}

func TestSetError(t *testing.T) {
	c := New(discount{}, discountFields()...)
	c.SetError("email", "errors.emailTaken")
	assert.Equal(t, Invalid, c.Status("email"))
	assert.Equal(t, "errors.emailTaken", c.Error("email"))
}
