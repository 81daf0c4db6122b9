package templates

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/table"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func TestComponents_Exact(t *testing.T) {
	tests := []struct {
		name string
		c    templ.Component
		want string
	}{
		{"link", Link("/customer/cars/k1", "CJ 01 ABC"), `<a href="/customer/cars/k1">CJ 01 ABC</a>`},
		{"link with script url", Link("javascript:alert(1)", "x"), `<a href="about:invalid#TemplFailedSanitizationURL">x</a>`},
		{"text is escaped", Text("<b>&</b>"), `&lt;b&gt;&amp;&lt;/b&gt;`},
		{"error with code", ErrorAlert("Eroare", "AUTH001"), `<div class="alert alert-danger" role="alert">Eroare <small>(AUTH001)</small></div>`},
		{"empty toast slot", ToastView(nil), `<div id="toast" hx-swap-oob="true"></div>`},
		{"group skips nil", Group(Text("a"), nil, Text("b")), `ab`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.c))
		})
	}
}

func TestLayout_MarksActiveNav(t *testing.T) {
	out := render(t, Layout(Page{Title: "Firme", Area: AreaStaff, Active: "companies", User: "Ana"}, Text("corp")))

	assert.Contains(t, out, `<title>Firme · ITP</title>`)
	assert.Contains(t, out, `<a href="/admin/companies" class="active">`)
	assert.Contains(t, out, `<a href="/admin/branches">`)
	assert.Contains(t, out, `action="/logout"`)
	assert.Contains(t, out, `<h1>Firme</h1>corp</main>`)

	public := render(t, Layout(Page{Title: "Login", Area: AreaPublic}, nil))
	assert.NotContains(t, public, "logout")
}

func TestToastView_Tone(t *testing.T) {
	out := render(t, ToastView(&Toast{Tone: "danger", Message: "Eșuat", Code: "API5XX"}))

	assert.Contains(t, out, `class="toast toast-danger"`)
	assert.Contains(t, out, `<small>API5XX</small>`)
}

func TestField(t *testing.T) {
	tests := []struct {
		name     string
		in       form.Input
		contains []string
		absent   []string
	}{
		{
			name: "invalid text field",
			in: form.Input{
				ID: "f-name", Name: "name", Label: "Nume", Type: form.InputText,
				Value: "A&B", Required: true, Error: form.KeyRequired, Status: form.Invalid,
			},
			contains: []string{
				`<div id="f-name-wrap" class="field field-invalid">`,
				`<input type="hidden" name="_touched" value="name">`,
				`<label for="f-name">Nume <span class="required">*</span></label>`,
				`<input type="text" id="f-name" name="name" required aria-invalid="true" aria-describedby="f-name-error"`,
				`hx-post="/admin/companies/validate/name" hx-trigger="blur"`,
				`hx-vals="{&#34;_touched&#34;: &#34;name&#34;}"`,
				`value="A&amp;B"`,
				`<p class="error" id="f-name-error">` + i18n.T(form.KeyRequired) + `</p>`,
			},
		},
		{
			name: "select validates on change",
			in: form.Input{
				ID: "f-kind", Name: "kind", Type: form.InputSelect, Value: "b", Placeholder: "-",
				Options: []form.Option{{Value: "a", Label: "A"}, {Value: "b", Label: "B"}},
			},
			contains: []string{
				`hx-trigger="change"`,
				`<option value="">-</option>`,
				`<option value="b" selected>B</option>`,
			},
			absent: []string{`_touched" value`, `aria-invalid`},
		},
		{
			name:     "password never echoes its value",
			in:       form.Input{ID: "f-pw", Name: "password", Type: form.InputPassword, Value: "secret"},
			contains: []string{`<input type="password" id="f-pw" name="password"`},
			absent:   []string{"secret"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(t, Field(tt.in, "/admin/companies/validate"))
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestForm_Submitting(t *testing.T) {
	out := render(t, Form(FormView{ID: "login", Action: "/login", Submitting: true, Error: "Parola este greșită"}))

	assert.Contains(t, out, `<form class="form" method="post" novalidate id="login" action="/login" hx-post="/login"`)
	assert.Contains(t, out, `<div class="alert alert-danger" role="alert">Parola este greșită</div>`)
	assert.Contains(t, out, `<button type="submit" class="button primary" disabled>`+i18n.T("common.saving")+`</button>`)
}

type company struct {
	id, name string
}

func companiesTable(rows []company) *table.Table[company] {
	return &table.Table[company]{
		ID: "companies",
		Columns: []table.Column[company]{
			table.Text("name", "Nume", func(c company) string { return c.name }),
		},
		Actions: []table.Action[company]{
			{Label: "Editează", Method: "GET", Href: func(c company) string { return "/admin/companies/" + c.id + "/edit" }},
			{Label: "Șterge", Method: "DELETE", Confirm: "Sigur?", Tone: table.ToneDanger, Href: func(c company) string { return "/admin/companies/" + c.id }},
		},
		Rows:   rows,
		RowKey: func(c company) string { return c.id },
		Pager: table.Pager{Page: 1, TotalPages: 3, Href: func(page int) string {
			return "/admin/companies?page=" + strconv.Itoa(page) + "&q=auto"
		}},
	}
}

func TestTable(t *testing.T) {
	out := render(t, Table(companiesTable([]company{{"c1", "Auto Test SRL"}}), "/admin/companies"))

	for _, s := range []string{
		`<section class="table" id="companies">`,
		`hx-target="#companies-body"`,
		`hx-indicator="#companies-loading"`,
		`<span class="htmx-indicator muted" id="companies-loading">`,
		`<input type="checkbox" name="cols" value="name" checked> Nume</label>`,
		`<tr id="companies-row-c1"><td data-label="Nume">Auto Test SRL</td>`,
		`<button type="button" class="button small" hx-get="/admin/companies/c1/edit" hx-target="#drawer" hx-swap="outerHTML">Editează</button>`,
		`<button type="button" class="button small tone-danger" hx-delete="/admin/companies/c1" hx-target="closest tr" hx-swap="outerHTML" hx-confirm="Sigur?">Șterge</button>`,
		`<a href="/admin/companies?page=1&amp;q=auto" hx-get="/admin/companies?page=1&amp;q=auto" hx-target="#companies-body" hx-swap="outerHTML" hx-push-url="true" aria-current="page" class="current">1</a>`,
		`>` + i18n.T("common.next") + `</a>`,
	} {
		assert.Contains(t, out, s)
	}
	assert.NotContains(t, out, i18n.T("common.previous"))
}

func TestTableBody_Empty(t *testing.T) {
	tbl := companiesTable(nil)
	tbl.Pager = table.Pager{}

	out := render(t, TableBody(tbl))

	assert.Contains(t, out, `<tr class="state"><td colspan="2">`+i18n.T("common.empty")+`</td></tr>`)
	assert.NotContains(t, out, `class="pager"`)

	tbl.EmptyText = "Nicio firmă"
	assert.Contains(t, render(t, TableBody(tbl)), `<td colspan="2">Nicio firmă</td>`)
}

func TestResendBlock(t *testing.T) {
	waiting := render(t, ResendBlock(42, "/customer/verify/resend"))
	assert.Contains(t, waiting, `data-countdown="42" hx-get="/customer/verify/resend" hx-trigger="countdown-done"`)
	assert.NotContains(t, waiting, "<button")

	ready := render(t, ResendBlock(0, "/customer/verify/resend"))
	assert.Contains(t, ready, `<button type="button" class="link" hx-post="/customer/verify/resend" hx-target="#otp-resend"`)
}
