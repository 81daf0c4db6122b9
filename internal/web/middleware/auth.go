package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/session"
)

// Login routes the guards send anonymous visitors to.
const (
	StaffLoginPath    = "/login"
	CustomerLoginPath = "/customer/login"
)

// LoadSession attaches the browser session to the request context, issuing
// the cookie on first visit.
func LoadSession(m *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := m.Load(w, r)
			ctx := session.NewContext(r.Context(), s)
			ctx = logging.WithSessionID(ctx, s.ID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type staffKey struct{}
type customerKey struct{}

// StaffUser returns the profile stored by RequireStaff.
func StaffUser(ctx context.Context) domain.AdminUser {
	u, _ := ctx.Value(staffKey{}).(domain.AdminUser)
	return u
}

// Customer returns the session stored by RequireCustomer, or nil.
func Customer(ctx context.Context) *session.CustomerState {
	st, _ := ctx.Value(customerKey{}).(*session.CustomerState)
	return st
}

// WithCustomer stores a customer session in ctx.
func WithCustomer(ctx context.Context, st *session.CustomerState) context.Context {
	return context.WithValue(ctx, customerKey{}, st)
}

// RequireStaff lets through sessions holding a staff access token. The
// token itself is checked by the backend on the first call.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())
		if s == nil {
			Redirect(w, r, StaffLoginPath)
			return
		}
		tokens := session.Staff(s)
		ok, err := tokens.LoggedIn(r.Context())
		if err != nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			Redirect(w, r, StaffLoginPath)
			return
		}
		user, _, _ := tokens.User(r.Context())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), staffKey{}, user)))
	})
}

// RequireCustomer lets through live customer sessions and restarts their
// 24h window on every visit. Expired sessions are cleared and sent to the
// customer login.
func RequireCustomer(ttl time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			if s == nil {
				Redirect(w, r, CustomerLoginPath)
				return
			}
			c := session.NewCustomer(s, ttl, now)
			st, err := c.Get(r.Context())
			if err != nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			if st == nil {
				Redirect(w, r, CustomerLoginPath)
				return
			}
			if _, err := c.Touch(r.Context()); err != nil {
				logging.FromContext(r.Context()).Warn("customer session renew failed", "error", err)
			}
			next.ServeHTTP(w, r.WithContext(WithCustomer(r.Context(), st)))
		})
	}
}

// Redirect sends the browser to url. HTMX requests get HX-Redirect so the
// whole page navigates instead of swapping the login page into a fragment.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
