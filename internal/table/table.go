// Package table implements the generic list screen used by every admin and
// customer listing: typed column descriptors, free-text search over the
// searchable columns, per-column filter toggles, row actions, pagination and
// spreadsheet export.
//
// Rows are never reordered; they are shown in the order the backend sent them.
package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Kind selects how a column renders its cells.
type Kind int

const (
	KindText Kind = iota
	KindBadge
	KindDate
	KindMoney
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBadge:
		return "badge"
	case KindDate:
		return "date"
	case KindMoney:
		return "money"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tone is the color of a badge.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// Column describes one column of a Table[T]. Which accessor is consulted
// depends on Kind; use the constructors rather than filling it by hand.
type Column[T any] struct {
	Key   string
	Label string
	Kind  Kind

	value  func(T) string
	badge  func(T) (string, Tone)
	date   func(T) time.Time
	amount func(T) float64
	render func(T) templ.Component

	// Format overrides the default money format.
	Format func(float64) string

	// NotSearchable excludes the column from free-text search.
	NotSearchable bool
}

// Text is a plain string column.
func Text[T any](key, label string, value func(T) string) Column[T] {
	return Column[T]{Key: key, Label: label, Kind: KindText, value: value}
}

// Badge renders a colored label.
func Badge[T any](key, label string, badge func(T) (string, Tone)) Column[T] {
	return Column[T]{Key: key, Label: label, Kind: KindBadge, badge: badge}
}

// Date renders a calendar date as dd.mm.yyyy; zero times render empty.
func Date[T any](key, label string, date func(T) time.Time) Column[T] {
	return Column[T]{Key: key, Label: label, Kind: KindDate, date: date}
}

// Money renders an amount with two decimals.
func Money[T any](key, label string, amount func(T) float64) Column[T] {
	return Column[T]{Key: key, Label: label, Kind: KindMoney, amount: amount}
}

// Custom renders with an arbitrary component; text is what search and
// export see.
func Custom[T any](key, label string, text func(T) string, render func(T) templ.Component) Column[T] {
	return Column[T]{Key: key, Label: label, Kind: KindCustom, value: text, render: render}
}

// Searchable sets whether the column takes part in search.
func (c Column[T]) Searchable(on bool) Column[T] {
	c.NotSearchable = !on
	return c
}

// WithFormat sets the money formatter.
func (c Column[T]) WithFormat(f func(float64) string) Column[T] {
	c.Format = f
	return c
}

// Text returns the string representation of the cell, used for display,
// search and export.
func (c Column[T]) Text(row T) string {
	switch c.Kind {
	case KindBadge:
		if c.badge == nil {
			return ""
		}
		label, _ := c.badge(row)
		return label
	case KindDate:
		if c.date == nil {
			return ""
		}
		t := c.date(row)
		if t.IsZero() {
			return ""
		}
		return t.Format("02.01.2006")
	case KindMoney:
		if c.amount == nil {
			return ""
		}
		if c.Format != nil {
			return c.Format(c.amount(row))
		}
		return fmt.Sprintf("%.2f", c.amount(row))
	default:
		if c.value == nil {
			return ""
		}
		return c.value(row)
	}
}

// Tone returns the badge tone for badge columns.
func (c Column[T]) Tone(row T) Tone {
	if c.Kind != KindBadge || c.badge == nil {
		return ToneNeutral
	}
	_, tone := c.badge(row)
	return tone
}

// Component returns the custom component, or nil for other kinds.
func (c Column[T]) Component(row T) templ.Component {
	if c.Kind != KindCustom || c.render == nil {
		return nil
	}
	return c.render(row)
}

// Action is a per-row button.
type Action[T any] struct {
	Label string
	Href  func(T) string

	// Method is the HTMX verb; empty means a plain link.
	Method  string
	Confirm string
	Tone    Tone
	Hidden  func(T) bool
}

// Visible reports whether the action applies to row.
func (a Action[T]) Visible(row T) bool {
	return a.Hidden == nil || !a.Hidden(row)
}

// Table is the view model of one list screen.
type Table[T any] struct {
	ID      string
	Columns []Column[T]
	Actions []Action[T]
	Rows    []T
	RowKey  func(T) string

	// Search state echoed back into the toolbar.
	Query    string
	Disabled map[string]bool

	Pager     Pager
	ExportURL string

	EmptyText string
}

// Searchable returns the searchable columns, for the filter panel.
func (t *Table[T]) Searchable() []Column[T] {
	out := make([]Column[T], 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.NotSearchable {
			out = append(out, c)
		}
	}
	return out
}

// ColumnEnabled reports whether the filter panel checkbox is ticked.
func (t *Table[T]) ColumnEnabled(key string) bool {
	return !t.Disabled[key]
}

// Empty reports whether there is nothing to show.
func (t *Table[T]) Empty() bool {
	return len(t.Rows) == 0
}

// ParseDisabled reads the comma separated "off" query value.
func ParseDisabled(raw []string) map[string]bool {
	out := make(map[string]bool)
	for _, v := range raw {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out[k] = true
			}
		}
	}
	return out
}
