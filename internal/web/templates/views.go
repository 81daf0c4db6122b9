// Package templates holds the HTML components of the portal. The components
// are written in .templ files; run `go generate` after editing them.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/table"
)

// Areas of the portal, selecting the navigation.
const (
	AreaPublic   = "public"
	AreaStaff    = "staff"
	AreaCustomer = "customer"
)

// Toast is a transient notification.
type Toast struct {
	Tone    string // success, danger, warning
	Message string
	Code    string
}

// Page is the chrome around a screen.
type Page struct {
	Title  string
	Area   string
	Active string
	User   string
	Toast  *Toast
}

type navItem struct {
	key  string
	href string
}

var staffNav = []navItem{
	{"dashboard", "/admin"},
	{"companies", "/admin/companies"},
	{"branches", "/admin/branches"},
	{"users", "/admin/users"},
	{"packages", "/admin/packages"},
	{"discounts", "/admin/discounts"},
}

var customerNav = []navItem{
	{"cars", "/customer"},
	{"stations", "/customer/stations"},
}

// navFor returns the menu and the logout target of an area. The public
// area has neither.
func navFor(area string) ([]navItem, string) {
	switch area {
	case AreaStaff:
		return staffNav, "/logout"
	case AreaCustomer:
		return customerNav, "/customer/logout"
	}
	return nil, ""
}

func navLabel(area, key string) string {
	if area == AreaCustomer {
		return i18n.T("customer." + key)
	}
	return i18n.T("nav." + key)
}

// FormView is a rendered form controller.
type FormView struct {
	ID     string
	Action string

	// ValidateURL receives blur validation posts; the field name is appended.
	ValidateURL string

	Inputs      []form.Input
	Submitted   bool
	Submitting  bool
	CanSubmit   bool
	SubmitLabel string

	// Error is a form-level message, usually from the backend.
	Error string

	// Extra renders after the fields, before the buttons.
	Extra templ.Component
}

func (f FormView) submitText() string {
	switch {
	case f.Submitting:
		return i18n.T("common.saving")
	case f.SubmitLabel != "":
		return f.SubmitLabel
	}
	return i18n.T("common.save")
}

// validateTrigger is the event that posts a field for validation. Text
// controls validate on blur, choice controls as soon as they change.
func validateTrigger(in form.Input) string {
	switch in.Type {
	case form.InputSelect, form.InputCheckbox, form.InputDate:
		return "change"
	}
	return "blur"
}

// controlAttrs are the attributes shared by every control type: identity,
// error wiring and the validation round trip.
func controlAttrs(in form.Input, validateURL string) templ.OrderedAttributes {
	attrs := templ.OrderedAttributes{
		{Key: "id", Value: in.ID},
		{Key: "name", Value: in.Name},
		{Key: "required", Value: in.Required},
	}
	if in.Error != "" {
		attrs = append(attrs,
			templ.KV[string, any]("aria-invalid", "true"),
			templ.KV[string, any]("aria-describedby", in.ID+"-error"),
		)
	}
	if validateURL == "" {
		return attrs
	}
	return append(attrs,
		templ.KV[string, any]("hx-post", validateURL+"/"+in.Name),
		templ.KV[string, any]("hx-trigger", validateTrigger(in)),
		templ.KV[string, any]("hx-include", "closest form"),
		templ.KV[string, any]("hx-target", "#"+in.ID+"-wrap"),
		templ.KV[string, any]("hx-swap", "outerHTML"),
		templ.KV[string, any]("hx-vals", `{"`+form.TouchedParam+`": "`+in.Name+`"}`),
	)
}

type statCard struct {
	label string
	value int
}

func statCards(st domain.Statistics) []statCard {
	return []statCard{
		{i18n.T("nav.companies"), st.Companies},
		{i18n.T("nav.branches"), st.Branches},
		{i18n.T("nav.users"), st.Users},
		{i18n.T("stats.customers"), st.Customers},
		{i18n.T("stats.cars"), st.Cars},
		{i18n.T("stats.smsSent"), st.SMSSent},
		{i18n.T("stats.activeSubscriptions"), st.ActiveSubscriptions},
	}
}

func emptyText(text string) string {
	if text == "" {
		return i18n.T("common.empty")
	}
	return text
}

// span is the column count of a table row, the actions cell included.
func span[T any](t *table.Table[T]) int {
	if len(t.Actions) > 0 {
		return len(t.Columns) + 1
	}
	return len(t.Columns)
}

func actionClass[T any](a table.Action[T]) string {
	if a.Tone != "" {
		return "button small tone-" + string(a.Tone)
	}
	return "button small"
}

// actionTarget is where an action's response lands: GET actions open the
// drawer, mutations replace their row.
func actionTarget(method string) string {
	if method == "get" {
		return "#drawer"
	}
	return "closest tr"
}

type pagerLink struct {
	page     int
	label    string
	current  bool
	ellipsis bool
}

// pagerLinks flattens the pager into the strip it renders: previous,
// the windowed pages and next.
func pagerLinks(p table.Pager) []pagerLink {
	var links []pagerLink
	if p.HasPrev() {
		links = append(links, pagerLink{page: p.Page - 1, label: i18n.T("common.previous")})
	}
	for _, it := range p.Items() {
		if it.Ellipsis {
			links = append(links, pagerLink{ellipsis: true})
			continue
		}
		links = append(links, pagerLink{page: it.Page, label: itoa(it.Page), current: it.Current})
	}
	if p.HasNext() {
		links = append(links, pagerLink{page: p.Page + 1, label: i18n.T("common.next")})
	}
	return links
}

func lower(s string) string {
	return strings.ToLower(s)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
