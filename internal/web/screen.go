package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/table"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

// screen is a list screen over one backend collection with create, edit
// and delete drawers. Every admin resource and the customer's cars,
// documents and reminders are screens.
type screen[T any] struct {
	key   string // table id, nav key, export file name
	title string
	area  string

	// prefix is the route under the mounting router; param names the item
	// id segment.
	prefix string
	param  string

	// base is the public URL of the collection for a request.
	base func(r *http.Request) string

	resource func(s *Server, r *http.Request) apiclient.Resource[T]
	columns  func(s *Server) []table.Column[T]
	fields   func(s *Server, r *http.Request, editing bool) ([]form.Field[T], error)
	id       func(T) string
	blank    func() T

	// Optional behaviour.
	noList  bool // the list is rendered elsewhere; after saving go to parent
	noEdit  bool
	parent  func(r *http.Request) string
	prepare func(s *Server, r *http.Request, v *T) error
	actions func(base string) []table.Action[T]
	extend  func(r chi.Router, s *Server)
}

func staticBase(path string) func(*http.Request) string {
	return func(*http.Request) string { return path }
}

func (sc *screen[T]) mount(r chi.Router, s *Server) {
	if sc.param == "" {
		sc.param = "id"
	}
	item := "/{" + sc.param + "}"

	r.Route(sc.prefix, func(r chi.Router) {
		if !sc.noList {
			r.Get("/", sc.handleList(s))
			r.Get("/export.xlsx", sc.handleExport(s))
		}
		r.Get("/new", sc.handleForm(s, false))
		r.Post("/", sc.handleSave(s, false))
		r.Post("/validate/{field}", sc.handleValidate(s, false))
		if !sc.noEdit {
			r.Get(item+"/edit", sc.handleForm(s, true))
			r.Post(item, sc.handleSave(s, true))
			r.Post(item+"/validate/{field}", sc.handleValidate(s, true))
		}
		r.Delete(item, sc.handleDelete(s))
		if sc.extend != nil {
			sc.extend(r, s)
		}
	})
}

// rowActions are edit and delete plus any screen specific actions.
func (sc *screen[T]) rowActions(base string) []table.Action[T] {
	var out []table.Action[T]
	if sc.actions != nil {
		out = append(out, sc.actions(base)...)
	}
	if !sc.noEdit {
		out = append(out, table.Action[T]{
			Label:  i18n.T("common.edit"),
			Href:   func(v T) string { return base + "/" + sc.id(v) + "/edit" },
			Method: http.MethodGet,
		})
	}
	out = append(out, table.Action[T]{
		Label:   i18n.T("common.delete"),
		Href:    func(v T) string { return base + "/" + sc.id(v) },
		Method:  http.MethodDelete,
		Confirm: i18n.T("common.confirm"),
		Tone:    table.ToneDanger,
	})
	return out
}

// table builds the list view model for rows.
func (sc *screen[T]) table(s *Server, r *http.Request, rows []T) *table.Table[T] {
	cols := sc.columns(s)
	lq := parseListQuery(r, cols)
	base := sc.base(r)
	listURL := base
	if sc.noList && sc.parent != nil {
		listURL = sc.parent(r)
	}

	t := buildTable(sc.key, listURL, cols, rows, lq)
	t.RowKey = sc.id
	t.Actions = sc.rowActions(base)
	if !sc.noList {
		t.ExportURL = lq.href(base+"/export.xlsx", 0)
	}
	return t
}

func (sc *screen[T]) handleList(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := sc.resource(s, r).All(r.Context(), nil)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadGateway)
			return
		}
		t := sc.table(s, r, rows)
		if isFragment(r) && r.Header.Get("HX-Target") == sc.key+"-body" {
			renderFragment(w, r, templates.TableBody(t), nil)
			return
		}
		base := sc.base(r)
		s.render(w, r, s.page(r, sc.area, sc.key, sc.title), templates.ListPage(base+"/new", templates.Table(t, base)))
	}
}

// handleExport writes every row matching the current search, across pages.
func (sc *screen[T]) handleExport(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := sc.resource(s, r).All(r.Context(), nil)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadGateway)
			return
		}
		cols := sc.columns(s)
		lq := parseListQuery(r, cols)
		rows = table.Filter(cols, rows, lq.Query, lq.Disabled)
		writeXLSX(w, r, sc.key+".xlsx", sc.title, cols, rows)
	}
}

// controller builds the form for a request, loading the item when editing.
func (sc *screen[T]) controller(s *Server, r *http.Request, editing bool) (*form.Controller[T], string, error) {
	fields, err := sc.fields(s, r, editing)
	if err != nil {
		return nil, "", err
	}
	initial := sc.blank()
	id := ""
	if editing {
		id = chi.URLParam(r, sc.param)
		if initial, err = sc.resource(s, r).Get(r.Context(), id); err != nil {
			return nil, "", err
		}
	}
	return form.New(initial, fields...), id, nil
}

func (sc *screen[T]) formView(r *http.Request, c *form.Controller[T], id string) templates.FormView {
	action := sc.base(r)
	if id != "" {
		action += "/" + id
	}
	return templates.FormView{
		ID:          sc.key + "-form",
		Action:      action,
		ValidateURL: action + "/validate",
		Inputs:      c.Inputs(),
		Submitted:   c.Submitted(),
		Submitting:  c.IsSubmitting(),
		CanSubmit:   c.CanSubmit(),
	}
}

func (sc *screen[T]) handleForm(s *Server, editing bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, id, err := sc.controller(s, r, editing)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadGateway)
			return
		}
		title := i18n.T("common.add")
		if editing {
			title = i18n.T("common.edit")
		}
		renderFragment(w, r, templates.FormDrawer(title+" · "+sc.title, sc.formView(r, c, id)), nil)
	}
}

// handleValidate answers a field blur with the re-rendered field.
func (sc *screen[T]) handleValidate(s *Server, editing bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := sc.fields(s, r, editing)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadGateway)
			return
		}
		if err := r.ParseForm(); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		c := form.New(sc.blank(), fields...)
		c.Bind(r.PostForm)
		name := chi.URLParam(r, "field")
		c.Blur(name)

		action := sc.base(r)
		if editing {
			action += "/" + chi.URLParam(r, sc.param)
		}
		renderFragment(w, r, templates.Field(c.Register(name), action+"/validate"), nil)
	}
}

func (sc *screen[T]) handleSave(s *Server, editing bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, id, err := sc.controller(s, r, editing)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadGateway)
			return
		}
		if err := r.ParseForm(); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		c.Bind(r.PostForm)

		res := sc.resource(s, r)
		err = c.HandleSubmit(r.Context(), func(ctx context.Context, v T) error {
			if sc.prepare != nil {
				if err := sc.prepare(s, r, &v); err != nil {
					return err
				}
			}
			if editing {
				_, err := res.Update(ctx, id, v)
				return err
			}
			_, err := res.Create(ctx, v)
			return err
		})

		if err == nil {
			to := sc.base(r)
			if sc.noList && sc.parent != nil {
				to = sc.parent(r)
			}
			key := "toast.created"
			if editing {
				key = "toast.saved"
			}
			logging.WithFields(r.Context(), "resource", sc.key, "id", id).Info("saved")
			s.redirectWithSuccess(w, r, to, key)
			return
		}

		view := sc.formView(r, c, id)
		if !errors.Is(err, form.ErrInvalid) {
			if errors.Is(err, apiclient.ErrSessionExpired) || errors.Is(err, apiclient.ErrCustomerUnauthorized) {
				s.respondError(w, r, err, http.StatusUnauthorized)
				return
			}
			applyFieldErrors(c, err)
			view = sc.formView(r, c, id)
			view.Error = MapError(err).Message
			logging.WithFields(r.Context(), "resource", sc.key).Warn("save rejected", "error", err)
		}
		renderFragment(w, r, templates.Form(view), nil)
	}
}

// applyFieldErrors shows backend per-field messages under the fields.
func applyFieldErrors[T any](c *form.Controller[T], err error) {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	for field, msg := range apiErr.Fields {
		c.SetError(field, msg)
	}
}

func (sc *screen[T]) handleDelete(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, sc.param)
		if err := sc.resource(s, r).Delete(r.Context(), id); err != nil {
			s.respondError(w, r, err, http.StatusBadGateway)
			return
		}
		logging.WithFields(r.Context(), "resource", sc.key, "id", id).Info("deleted")
		renderFragment(w, r, templates.Text(""), successToast("toast.deleted"))
	}
}
