package web

// This file contains shared utilities used across handlers.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/session"
	"github.com/JonMunkholm/itp-portal/internal/table"
	"github.com/JonMunkholm/itp-portal/internal/web/middleware"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

// perPage is the page size of every list.
const perPage = 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// listQuery is the search state of a list screen carried in the URL:
// q (free text), off (comma separated disabled columns) and page.
type listQuery struct {
	Query    string
	Disabled map[string]bool
	Page     int
}

// parseListQuery reads the list state. The toolbar posts the ticked
// columns as cols with a _cols marker; links carry the compact off form.
func parseListQuery[T any](r *http.Request, columns []table.Column[T]) listQuery {
	q := r.URL.Query()
	lq := listQuery{
		Query: strings.TrimSpace(q.Get("q")),
		Page:  parseIntParam(r, "page", 1),
	}

	if q.Get("_cols") == "" {
		lq.Disabled = table.ParseDisabled(q["off"])
		return lq
	}

	on := make(map[string]bool)
	for _, k := range q["cols"] {
		on[k] = true
	}
	lq.Disabled = make(map[string]bool)
	for _, c := range columns {
		if !c.NotSearchable && !on[c.Key] {
			lq.Disabled[c.Key] = true
		}
	}
	// A new search starts from the first page.
	lq.Page = 1
	return lq
}

// values encodes the state; page 0 is omitted.
func (lq listQuery) values(page int) url.Values {
	v := url.Values{}
	if lq.Query != "" {
		v.Set("q", lq.Query)
	}
	if len(lq.Disabled) > 0 {
		keys := make([]string, 0, len(lq.Disabled))
		for k, off := range lq.Disabled {
			if off {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		v.Set("off", strings.Join(keys, ","))
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	return v
}

// href builds a link to base keeping the search state.
func (lq listQuery) href(base string, page int) string {
	if enc := lq.values(page).Encode(); enc != "" {
		return base + "?" + enc
	}
	return base
}

// buildTable applies search and pagination to rows.
func buildTable[T any](id, base string, columns []table.Column[T], rows []T, lq listQuery) *table.Table[T] {
	filtered := table.Filter(columns, rows, lq.Query, lq.Disabled)
	pageRows, page, total := table.Paginate(filtered, lq.Page, perPage)
	return &table.Table[T]{
		ID:       id,
		Columns:  columns,
		Rows:     pageRows,
		Query:    lq.Query,
		Disabled: lq.Disabled,
		Pager: table.Pager{
			Page:       page,
			TotalPages: total,
			Href:       func(p int) string { return lq.href(base, p) },
		},
	}
}

// page builds the layout chrome for the request's area.
func (s *Server) page(r *http.Request, area, active, title string) templates.Page {
	p := templates.Page{Title: title, Area: area, Active: active}
	switch area {
	case templates.AreaStaff:
		u := middleware.StaffUser(r.Context())
		p.User = u.FullName()
		if p.User == "" {
			p.User = u.Email
		}
	case templates.AreaCustomer:
		if st := middleware.Customer(r.Context()); st != nil {
			p.User = st.User.DisplayName()
		}
	}
	return p
}

// render writes body inside the layout, or alone for HTMX fragment
// requests. A pending flash toast is shown either way.
func (s *Server) render(w http.ResponseWriter, r *http.Request, p templates.Page, body templ.Component) {
	p.Toast = s.popFlash(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var c templ.Component
	if isFragment(r) {
		c = templates.Group(body, templates.ToastView(p.Toast))
	} else {
		c = templates.Layout(p, body)
	}
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// renderFragment writes a component with an optional toast.
func renderFragment(w http.ResponseWriter, r *http.Request, c templ.Component, toast *templates.Toast) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if toast != nil {
		c = templates.Group(c, templates.ToastView(toast))
	}
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// setFlash stores a toast for the next rendered page.
func (s *Server) setFlash(r *http.Request, t templates.Toast) {
	sess := sessionOf(r)
	if sess == nil {
		return
	}
	if err := sess.SetJSON(r.Context(), session.KeyFlash, t); err != nil {
		logging.FromContext(r.Context()).Warn("flash not stored", "error", err)
	}
}

func (s *Server) popFlash(r *http.Request) *templates.Toast {
	sess := sessionOf(r)
	if sess == nil {
		return nil
	}
	raw, ok, err := sess.Pop(r.Context(), session.KeyFlash)
	if err != nil || !ok {
		return nil
	}
	var t templates.Toast
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil
	}
	return &t
}

func successToast(key string) *templates.Toast {
	return &templates.Toast{Tone: "success", Message: i18n.T(key)}
}

// redirectWithSuccess flashes a success toast and navigates to to.
func (s *Server) redirectWithSuccess(w http.ResponseWriter, r *http.Request, to, key string) {
	s.setFlash(r, *successToast(key))
	middleware.Redirect(w, r, to)
}

// writeXLSX streams a workbook download.
func writeXLSX[T any](w http.ResponseWriter, r *http.Request, filename, sheet string, columns []table.Column[T], rows []T) {
	w.Header().Set("Content-Type", table.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := table.WriteXLSX(w, sheet, columns, rows); err != nil {
		logging.FromContext(r.Context()).Error("xlsx export failed", "file", filename, "error", err)
	}
}
