package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/otp"
	"github.com/JonMunkholm/itp-portal/internal/phone"
	"github.com/JonMunkholm/itp-portal/internal/session"
	"github.com/JonMunkholm/itp-portal/internal/web/middleware"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

const (
	customerHome = "/customer"
	verifyPath   = "/customer/verify"
	resendPath   = "/customer/verify/resend"
)

// cooldownError is returned when a code was sent to the same number too
// recently.
type cooldownError struct {
	seconds int
}

func (e cooldownError) Error() string {
	return fmt.Sprintf("otp cooldown: %ds left", e.seconds)
}

func (e cooldownError) message() string {
	return i18n.T("errors.otpCooldown", e.seconds)
}

// phoneLogin is the first step of the customer login.
type phoneLogin struct {
	Phone string
}

func phoneFields() []form.Field[phoneLogin] {
	return []form.Field[phoneLogin]{{
		Name:        "phone",
		Label:       i18n.T("customer.login.phone"),
		Input:       form.InputTel,
		Placeholder: "07xx xxx xxx",
		Required:    true,
		Validate:    form.MobilePhone[phoneLogin](),
		Bind:        form.String(func(v *phoneLogin) *string { return &v.Phone }),
	}}
}

func phoneView(c *form.Controller[phoneLogin]) templates.FormView {
	return templates.FormView{
		ID:          "customer-login-form",
		Action:      middleware.CustomerLoginPath,
		ValidateURL: middleware.CustomerLoginPath + "/validate",
		Inputs:      c.Inputs(),
		Submitted:   c.Submitted(),
		Submitting:  c.IsSubmitting(),
		CanSubmit:   c.CanSubmit(),
		SubmitLabel: i18n.T("customer.login.send"),
	}
}

// codeLogin is the second step: the SMS code.
type codeLogin struct {
	Code string
}

var otpCodeRegexp = regexp.MustCompile(`^\d{6}$`)

func codeFields() []form.Field[codeLogin] {
	return []form.Field[codeLogin]{{
		Name:        "code",
		Label:       i18n.T("customer.verify.code"),
		Placeholder: "123456",
		Required:    true,
		Validate: func(value string, _ codeLogin) string {
			value = strings.TrimSpace(value)
			if value == "" || otpCodeRegexp.MatchString(value) {
				return ""
			}
			return "validation.otpCode"
		},
		Bind: form.String(func(v *codeLogin) *string { return &v.Code }),
	}}
}

func codeView(c *form.Controller[codeLogin]) templates.FormView {
	return templates.FormView{
		ID:          "verify-form",
		Action:      verifyPath,
		Inputs:      c.Inputs(),
		Submitted:   c.Submitted(),
		Submitting:  c.IsSubmitting(),
		CanSubmit:   c.CanSubmit(),
		SubmitLabel: i18n.T("customer.verify.submit"),
	}
}

// otpState reads the pending login of the browser session.
func (s *Server) otpState(r *http.Request) (number string, remaining int) {
	sess := sessionOf(r)
	number, _, _ = sess.Lookup(r.Context(), session.KeyOTPPhone)
	raw, _, _ := sess.Lookup(r.Context(), session.KeyOTPSentAt)
	return number, s.cooldown.RemainingSeconds(otp.DecodeSentAt(raw))
}

// sendCode texts a code to number unless the cooldown for that number is
// still running, and records the send.
func (s *Server) sendCode(ctx context.Context, sess *session.Session, number string) error {
	pending, _, err := sess.Lookup(ctx, session.KeyOTPPhone)
	if err != nil {
		return err
	}
	if pending == number {
		raw, _, err := sess.Lookup(ctx, session.KeyOTPSentAt)
		if err != nil {
			return err
		}
		if sentAt := otp.DecodeSentAt(raw); !s.cooldown.CanResend(sentAt) {
			return cooldownError{seconds: s.cooldown.RemainingSeconds(sentAt)}
		}
	}

	if err := s.api.SendOTP(ctx, number); err != nil {
		return err
	}
	if err := sess.Set(ctx, session.KeyOTPPhone, number); err != nil {
		return err
	}
	return sess.Set(ctx, session.KeyOTPSentAt, otp.EncodeSentAt(s.now()))
}

func (s *Server) customerLoginTitle() string { return i18n.T("customer.login.title") }

func (s *Server) handleCustomerLoginPage(w http.ResponseWriter, r *http.Request) {
	if st, _ := s.customerSession(r).Get(r.Context()); st != nil {
		http.Redirect(w, r, customerHome, http.StatusSeeOther)
		return
	}
	c := form.New(phoneLogin{}, phoneFields()...)
	s.render(w, r, s.page(r, templates.AreaPublic, "", s.customerLoginTitle()), templates.LoginPage(phoneView(c)))
}

func (s *Server) handleCustomerLoginValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c := form.New(phoneLogin{}, phoneFields()...)
	c.Bind(r.PostForm)
	name := chi.URLParam(r, "field")
	c.Blur(name)
	renderFragment(w, r, templates.Field(c.Register(name), middleware.CustomerLoginPath+"/validate"), nil)
}

// handleCustomerLogin sends the SMS code and moves on to the code screen.
func (s *Server) handleCustomerLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c := form.New(phoneLogin{}, phoneFields()...)
	c.Bind(r.PostForm)

	sess := sessionOf(r)
	err := c.HandleSubmit(r.Context(), func(ctx context.Context, in phoneLogin) error {
		number, err := phone.Normalize(in.Phone)
		if err != nil {
			return err
		}
		return s.sendCode(ctx, sess, number)
	})
	if err == nil {
		s.redirectWithSuccess(w, r, verifyPath, "toast.otpSent")
		return
	}

	view := phoneView(c)
	var cd cooldownError
	switch {
	case errors.Is(err, form.ErrInvalid):
	case errors.As(err, &cd):
		view.Error = cd.message()
	default:
		view.Error = MapError(err).Message
		logging.FromContext(r.Context()).Warn("otp send failed", "error", err)
	}
	if isFragment(r) {
		renderFragment(w, r, templates.Form(view), nil)
		return
	}
	s.render(w, r, s.page(r, templates.AreaPublic, "", s.customerLoginTitle()), templates.LoginPage(view))
}

func (s *Server) verifyPage(w http.ResponseWriter, r *http.Request, number string, remaining int, view templates.FormView) {
	body := templates.VerifyPage(phone.Mask(number), view, templates.ResendBlock(remaining, resendPath))
	s.render(w, r, s.page(r, templates.AreaPublic, "", i18n.T("customer.verify.title")), body)
}

func (s *Server) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	number, remaining := s.otpState(r)
	if number == "" {
		middleware.Redirect(w, r, middleware.CustomerLoginPath)
		return
	}
	s.verifyPage(w, r, number, remaining, codeView(form.New(codeLogin{}, codeFields()...)))
}

// handleVerify exchanges the code for a customer token and opens the 24h
// session window.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	number, remaining := s.otpState(r)
	if number == "" {
		middleware.Redirect(w, r, middleware.CustomerLoginPath)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	c := form.New(codeLogin{}, codeFields()...)
	c.Bind(r.PostForm)

	sess := sessionOf(r)
	err := c.HandleSubmit(r.Context(), func(ctx context.Context, in codeLogin) error {
		login, err := s.api.VerifyOTP(ctx, number, strings.TrimSpace(in.Code))
		if err != nil {
			return err
		}
		if err := s.customerSession(r).Save(ctx, login.AccessToken, login.User); err != nil {
			return err
		}
		return sess.Delete(ctx, session.KeyOTPPhone, session.KeyOTPSentAt)
	})
	if err == nil {
		logging.FromContext(r.Context()).Info("customer login", "phone", phone.Mask(number))
		s.redirectWithSuccess(w, r, customerHome, "toast.loggedIn")
		return
	}

	view := codeView(c)
	if !errors.Is(err, form.ErrInvalid) {
		view.Error = MapError(err).Message
		logging.FromContext(r.Context()).Warn("otp verify failed", "error", err)
	}
	if isFragment(r) {
		renderFragment(w, r, templates.Form(view), nil)
		return
	}
	s.verifyPage(w, r, number, remaining, view)
}

// handleResendBlock re-renders the resend control when the countdown ends.
func (s *Server) handleResendBlock(w http.ResponseWriter, r *http.Request) {
	_, remaining := s.otpState(r)
	renderFragment(w, r, templates.ResendBlock(remaining, resendPath), nil)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	number, _ := s.otpState(r)
	if number == "" {
		middleware.Redirect(w, r, middleware.CustomerLoginPath)
		return
	}

	err := s.sendCode(r.Context(), sessionOf(r), number)
	var cd cooldownError
	switch {
	case err == nil:
		renderFragment(w, r, templates.ResendBlock(s.cooldown.RemainingSeconds(s.now()), resendPath), successToast("toast.otpSent"))
	case errors.As(err, &cd):
		renderFragment(w, r, templates.ResendBlock(cd.seconds, resendPath),
			&templates.Toast{Tone: "warning", Message: cd.message()})
	default:
		s.respondError(w, r, err, http.StatusBadGateway)
	}
}

// handleCustomerLogout clears the three customer keys. The backend keeps no
// customer session to revoke.
func (s *Server) handleCustomerLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.customerSession(r).Clear(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("customer logout failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordCustomerLogout("user")
	}
	middleware.Redirect(w, r, middleware.CustomerLoginPath)
}
