package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/session"
	"github.com/JonMunkholm/itp-portal/internal/web/middleware"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

// credentials is the staff login form.
type credentials struct {
	Email    string
	Password string
}

func loginFields() []form.Field[credentials] {
	return []form.Field[credentials]{
		{
			Name:     "email",
			Label:    i18n.T("login.email"),
			Input:    form.InputEmail,
			Required: true,
			Validate: form.Email[credentials](),
			Bind:     form.String(func(c *credentials) *string { return &c.Email }),
		},
		{
			Name:     "password",
			Label:    i18n.T("login.password"),
			Input:    form.InputPassword,
			Required: true,
			Bind:     form.String(func(c *credentials) *string { return &c.Password }),
		},
	}
}

func loginView(c *form.Controller[credentials]) templates.FormView {
	return templates.FormView{
		ID:          "login-form",
		Action:      middleware.StaffLoginPath,
		ValidateURL: middleware.StaffLoginPath + "/validate",
		Inputs:      c.Inputs(),
		Submitted:   c.Submitted(),
		Submitting:  c.IsSubmitting(),
		CanSubmit:   c.CanSubmit(),
		SubmitLabel: i18n.T("login.submit"),
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if ok, _ := session.Staff(sessionOf(r)).LoggedIn(r.Context()); ok {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	c := form.New(credentials{}, loginFields()...)
	s.render(w, r, s.page(r, templates.AreaPublic, "", i18n.T("login.title")), templates.LoginPage(loginView(c)))
}

func (s *Server) handleLoginValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c := form.New(credentials{}, loginFields()...)
	c.Bind(r.PostForm)
	name := chi.URLParam(r, "field")
	c.Blur(name)
	renderFragment(w, r, templates.Field(c.Register(name), middleware.StaffLoginPath+"/validate"), nil)
}

// handleLogin exchanges the credentials for backend tokens. Failures
// re-render the form with the backend message.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c := form.New(credentials{}, loginFields()...)
	c.Bind(r.PostForm)

	sess := sessionOf(r)
	err := c.HandleSubmit(r.Context(), func(ctx context.Context, in credentials) error {
		user, err := s.staffAPI(r).Login(ctx, in.Email, in.Password)
		if err != nil {
			return err
		}
		return session.Staff(sess).SetUser(ctx, user)
	})
	if err == nil {
		logging.FromContext(r.Context()).Info("staff login", "email", c.Values().Email)
		s.redirectWithSuccess(w, r, "/admin", "toast.loggedIn")
		return
	}

	view := loginView(c)
	if !errors.Is(err, form.ErrInvalid) {
		view.Error = MapError(err).Message
		logging.FromContext(r.Context()).Warn("staff login failed", "error", err)
	}
	if isFragment(r) {
		renderFragment(w, r, templates.Form(view), nil)
		return
	}
	s.render(w, r, s.page(r, templates.AreaPublic, "", i18n.T("login.title")), templates.LoginPage(view))
}

// handleLogout revokes the refresh token and clears the staff keys. The
// local logout happens even when the backend call fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.staffAPI(r).Logout(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("backend logout failed", "error", err)
	}
	middleware.Redirect(w, r, middleware.StaffLoginPath)
}
