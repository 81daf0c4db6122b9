package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/config"
	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/session"
	"github.com/JonMunkholm/itp-portal/internal/table"
	"github.com/JonMunkholm/itp-portal/internal/web/middleware"
)

// harness is a portal wired to a fake backend with one browser session.
type harness struct {
	t       *testing.T
	server  *Server
	store   *session.MemoryStore
	backend *chi.Mux
	sid     string
	now     time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Session:  config.SessionConfig{CookieName: "itp_sid", CustomerTTL: 24 * time.Hour, MaxAge: time.Hour},
		Rate:     config.RateLimitConfig{Enabled: false, RequestsPerMinute: 1000, Burst: 100, OTPPerMinute: 5},
		Security: config.SecurityConfig{EnableCSP: true},
		OTP:      config.OTPConfig{ResendCooldown: 60 * time.Second},
	}
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		store:   session.NewMemoryStore(),
		backend: chi.NewRouter(),
		sid:     uuid.NewString(),
		now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	backend := httptest.NewServer(h.backend)
	t.Cleanup(backend.Close)

	if cfg == nil {
		cfg = testConfig()
	}
	h.server = NewServer(Deps{
		Config:   cfg,
		API:      apiclient.NewWithBaseURL(backend.URL+"/api", "ro"),
		Sessions: session.NewManager(h.store, cfg.Session),
		Gatherer: prometheus.NewRegistry(),
		Now:      func() time.Time { return h.now },
	})
	return h
}

func (h *harness) session() *session.Session {
	return session.New(h.store, h.sid)
}

func (h *harness) loginStaff() {
	h.t.Helper()
	ctx := context.Background()
	tokens := session.Staff(h.session())
	require.NoError(h.t, tokens.SetTokens(ctx, "access", "refresh"))
	require.NoError(h.t, tokens.SetUser(ctx, domain.AdminUser{FirstName: "Ana", LastName: "Pop"}))
}

func (h *harness) loginCustomer() {
	h.t.Helper()
	c := session.NewCustomer(h.session(), 24*time.Hour, func() time.Time { return h.now })
	require.NoError(h.t, c.Save(context.Background(), "cust-token", domain.CustomerUser{ID: "c1", Phone: "+40722123456"}))
}

func (h *harness) request(method, target string, body url.Values, htmx bool) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: "itp_sid", Value: h.sid})
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return req
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func (h *harness) lookup(key string) (string, bool) {
	v, ok, err := h.session().Lookup(context.Background(), key)
	require.NoError(h.t, err)
	return v, ok
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func listOf(items any) map[string]any {
	return map[string]any{"data": items, "meta": map[string]any{"page": 1, "total_pages": 1}}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdmin_RequiresStaffLogin(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(h.request(http.MethodGet, "/admin/companies", nil, false))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, middleware.StaffLoginPath, rec.Header().Get("Location"))

	rec = h.do(h.request(http.MethodGet, "/admin/companies", nil, true))
	assert.Equal(t, middleware.StaffLoginPath, rec.Header().Get("HX-Redirect"))
}

func TestLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			sendJSON(w, http.StatusUnauthorized, map[string]string{"message": "Parola este greșită"})
			return
		}
		sendJSON(w, http.StatusOK, map[string]any{
			"access_token":  "a1",
			"refresh_token": "r1",
			"user":          map[string]any{"email": body["email"], "first_name": "Ana"},
		})
	})

	t.Run("wrong password keeps the form", func(t *testing.T) {
		rec := h.do(h.request(http.MethodPost, "/login", url.Values{"email": {"ana@itp.ro"}, "password": {"nope"}}, true))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Parola este greșită")
		_, ok := h.lookup(session.KeyAccessToken)
		assert.False(t, ok)
	})

	t.Run("success stores tokens and redirects", func(t *testing.T) {
		rec := h.do(h.request(http.MethodPost, "/login", url.Values{"email": {"ana@itp.ro"}, "password": {"secret123"}}, true))
		assert.Equal(t, "/admin", rec.Header().Get("HX-Redirect"))

		access, _ := h.lookup(session.KeyAccessToken)
		refresh, _ := h.lookup(session.KeyRefreshToken)
		assert.Equal(t, "a1", access)
		assert.Equal(t, "r1", refresh)

		flash, ok := h.lookup(session.KeyFlash)
		require.True(t, ok)
		assert.Contains(t, flash, i18n.T("toast.loggedIn"))
	})

	t.Run("login page skips straight to admin", func(t *testing.T) {
		rec := h.do(h.request(http.MethodGet, "/login", nil, false))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin", rec.Header().Get("Location"))
	})
}

func TestLogin_InvalidEmailNotSent(t *testing.T) {
	h := newHarness(t, nil)
	var calls atomic.Int32
	h.backend.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		sendJSON(w, http.StatusOK, map[string]any{})
	})

	rec := h.do(h.request(http.MethodPost, "/login", url.Values{"email": {"ana@"}, "password": {"x"}}, true))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), i18n.T(form.KeyEmail))
	assert.Zero(t, calls.Load())
}

func companiesBackend(h *harness) {
	h.backend.Get("/api/companies", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(h.t, "Bearer access", r.Header.Get("Authorization"))
		sendJSON(w, http.StatusOK, listOf([]domain.Company{
			{ID: "1", Name: "Auto Test SRL", CUI: "RO123", City: "Cluj", IsActive: true},
			{ID: "2", Name: "Beta Service", CUI: "RO456", City: "Iasi", IsActive: false},
		}))
	})
}

func TestCompanies_SearchFragment(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	companiesBackend(h)

	req := h.request(http.MethodGet, "/admin/companies?q=auto", nil, true)
	req.Header.Set("HX-Target", "companies-body")
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Auto Test SRL")
	assert.NotContains(t, body, "Beta Service")
	assert.NotContains(t, body, "<html")
}

func TestCompanies_FullPage(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	companiesBackend(h)

	rec := h.do(h.request(http.MethodGet, "/admin/companies", nil, false))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<html")
	assert.Contains(t, body, "Auto Test SRL")
	assert.Contains(t, body, "Beta Service")
	assert.Contains(t, body, "Ana Pop")
}

func TestCompanies_ExportXLSX(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	companiesBackend(h)

	rec := h.do(h.request(http.MethodGet, "/admin/companies/export.xlsx?q=beta", nil, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, table.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "companies.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(i18n.T("nav.companies"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, i18n.T("field.name"), rows[0][0])
	assert.Equal(t, "Beta Service", rows[1][0])
}

func TestCompanies_ValidateField(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()

	rec := h.do(h.request(http.MethodPost, "/admin/companies/validate/email", url.Values{"email": {"not-an-email"}}, true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), i18n.T(form.KeyEmail))

	rec = h.do(h.request(http.MethodPost, "/admin/companies/validate/email", url.Values{"email": {"office@auto.ro"}}, true))
	assert.NotContains(t, rec.Body.String(), i18n.T(form.KeyEmail))
}

func TestCompanies_CreateNormalizesPhone(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()

	var created domain.Company
	h.backend.Post("/api/companies", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&created)
		created.ID = "9"
		sendJSON(w, http.StatusCreated, map[string]any{"data": created})
	})

	rec := h.do(h.request(http.MethodPost, "/admin/companies", url.Values{
		"name":      {"Nou SRL"},
		"cui":       {"RO999"},
		"phone":     {"0722 123 456"},
		"is_active": {"on"},
	}, true))

	assert.Equal(t, "/admin/companies", rec.Header().Get("HX-Redirect"))
	assert.Equal(t, "Nou SRL", created.Name)
	assert.Equal(t, "+40722123456", created.Phone)
}

func TestCompanies_BackendFieldErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	h.backend.Post("/api/companies", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "CUI deja folosit",
			"errors":  map[string]any{"cui": []string{"CUI deja folosit"}},
		})
	})

	rec := h.do(h.request(http.MethodPost, "/admin/companies", url.Values{"name": {"X"}, "cui": {"RO1"}}, true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("HX-Redirect"))
	assert.Contains(t, rec.Body.String(), "CUI deja folosit")
}

func TestDiscounts_InvalidPercentageNotPosted(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()

	var posted atomic.Int32
	h.backend.Get("/api/packages", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, listOf([]domain.Package{{ID: "p1", Name: "Start", MonthlyPrice: 100, IsActive: true}}))
	})
	h.backend.Post("/api/discounts", func(w http.ResponseWriter, r *http.Request) {
		posted.Add(1)
		sendJSON(w, http.StatusCreated, map[string]any{})
	})

	rec := h.do(h.request(http.MethodPost, "/admin/discounts", url.Values{
		"name":       {"Primavara"},
		"package_id": {"p1"},
		"percentage": {"150"},
		"valid_from": {"2026-03-10"},
		"valid_to":   {"2026-03-01"},
	}, true))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, i18n.T(form.KeyPercentage))
	assert.Contains(t, body, "discounts-form")
	assert.Zero(t, posted.Load())
}

func TestDelete_ReturnsToast(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	var deleted string
	h.backend.Delete("/api/companies/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = chi.URLParam(r, "id")
		w.WriteHeader(http.StatusNoContent)
	})

	rec := h.do(h.request(http.MethodDelete, "/admin/companies/7", nil, true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", deleted)
	assert.Contains(t, rec.Body.String(), i18n.T("toast.deleted"))
}

func TestStaff_RefreshFailureRedirectsToLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	h.backend.Get("/api/companies", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	h.backend.Post("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec := h.do(h.request(http.MethodGet, "/admin/companies", nil, true))
	assert.Equal(t, middleware.StaffLoginPath, rec.Header().Get("HX-Redirect"))

	_, ok := h.lookup(session.KeyAccessToken)
	assert.False(t, ok)
	flash, _ := h.lookup(session.KeyFlash)
	assert.Contains(t, flash, "AUTH001")

	// The login page shows the toast once and consumes it.
	rec = h.do(h.request(http.MethodGet, middleware.StaffLoginPath, nil, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH001")
	_, ok = h.lookup(session.KeyFlash)
	assert.False(t, ok)

	rec = h.do(h.request(http.MethodGet, middleware.StaffLoginPath, nil, false))
	assert.NotContains(t, rec.Body.String(), "AUTH001")
}

func TestPackages_Quote(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	h.backend.Get("/api/packages/{id}", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, domain.Package{ID: chi.URLParam(r, "id"), Name: "Start", MonthlyPrice: 100, IsActive: true})
	})
	h.backend.Get("/api/discounts", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, []map[string]any{
			{"id": "d1", "name": "Primavara", "percentage": 20, "is_active": true,
				"valid_from": "2026-03-01", "valid_to": "2026-03-31"},
			{"id": "d2", "name": "Expirat", "percentage": 50, "is_active": true,
				"valid_from": "2026-01-01", "valid_to": "2026-01-31"},
			{"id": "d3", "name": "Alt pachet", "package_id": "p9", "percentage": 40, "is_active": true},
		})
	})

	rec := h.do(h.request(http.MethodGet, "/admin/packages/p1/quote?period=yearly", nil, true))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, domain.FormatLei(1000))
	assert.Contains(t, body, "Primavara")
	assert.Contains(t, body, domain.FormatLei(800))
	assert.NotContains(t, body, "Expirat")

	rec = h.do(h.request(http.MethodGet, "/admin/packages/p1/quote?period=bogus", nil, true))
	assert.Contains(t, rec.Body.String(), domain.FormatLei(80))
}

func TestCustomer_OTPLoginFlow(t *testing.T) {
	h := newHarness(t, nil)
	var sent atomic.Int32
	h.backend.Post("/api/customer/auth/send-otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "+40722123456", body["phone"])
		sent.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	h.backend.Post("/api/customer/auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["code"] != "123456" {
			sendJSON(w, http.StatusUnauthorized, map[string]string{"message": "Cod invalid"})
			return
		}
		sendJSON(w, http.StatusOK, map[string]any{
			"access_token": "cust-token",
			"user":         map[string]any{"id": "c1", "phone": body["phone"]},
		})
	})

	rec := h.do(h.request(http.MethodPost, "/customer/login", url.Values{"phone": {"0722 123 456"}}, false))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, verifyPath, rec.Header().Get("Location"))
	assert.EqualValues(t, 1, sent.Load())

	pending, _ := h.lookup(session.KeyOTPPhone)
	assert.Equal(t, "+40722123456", pending)

	// Same number inside the cooldown is refused without calling the backend.
	h.now = h.now.Add(10 * time.Second)
	rec = h.do(h.request(http.MethodPost, "/customer/login", url.Values{"phone": {"+40 722 123 456"}}, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), i18n.T("errors.otpCooldown", 50))
	assert.EqualValues(t, 1, sent.Load())

	rec = h.do(h.request(http.MethodPost, verifyPath, url.Values{"code": {"000000"}}, true))
	assert.Contains(t, rec.Body.String(), "Cod invalid")
	_, ok := h.lookup(session.KeyCustomerToken)
	assert.False(t, ok)

	rec = h.do(h.request(http.MethodPost, verifyPath, url.Values{"code": {"123456"}}, true))
	assert.Equal(t, customerHome, rec.Header().Get("HX-Redirect"))

	token, _ := h.lookup(session.KeyCustomerToken)
	assert.Equal(t, "cust-token", token)
	_, ok = h.lookup(session.KeyOTPPhone)
	assert.False(t, ok)
}

func TestCustomer_ResendAfterCooldown(t *testing.T) {
	h := newHarness(t, nil)
	var sent atomic.Int32
	h.backend.Post("/api/customer/auth/send-otp", func(w http.ResponseWriter, r *http.Request) {
		sent.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	h.do(h.request(http.MethodPost, "/customer/login", url.Values{"phone": {"0722123456"}}, false))
	require.EqualValues(t, 1, sent.Load())

	rec := h.do(h.request(http.MethodPost, resendPath, nil, true))
	assert.Contains(t, rec.Body.String(), i18n.T("errors.otpCooldown", 60))
	assert.EqualValues(t, 1, sent.Load())

	h.now = h.now.Add(61 * time.Second)
	rec = h.do(h.request(http.MethodPost, resendPath, nil, true))
	assert.Contains(t, rec.Body.String(), i18n.T("toast.otpSent"))
	assert.EqualValues(t, 2, sent.Load())
}

func TestCustomer_LoginRejectsLandline(t *testing.T) {
	h := newHarness(t, nil)
	var sent atomic.Int32
	h.backend.Post("/api/customer/auth/send-otp", func(w http.ResponseWriter, r *http.Request) {
		sent.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := h.do(h.request(http.MethodPost, "/customer/login", url.Values{"phone": {"021 234 5678"}}, true))
	assert.Contains(t, rec.Body.String(), i18n.T(form.KeyMobile))
	assert.Zero(t, sent.Load())
	_, ok := h.lookup(session.KeyOTPPhone)
	assert.False(t, ok)
}

func TestCustomer_VerifyWithoutPendingCode(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(h.request(http.MethodGet, verifyPath, nil, false))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, middleware.CustomerLoginPath, rec.Header().Get("Location"))
}

func TestCustomer_SessionExpiry(t *testing.T) {
	h := newHarness(t, nil)
	h.loginCustomer()
	h.backend.Get("/api/customer/cars", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cust-token", r.Header.Get("Authorization"))
		sendJSON(w, http.StatusOK, []domain.CustomerCar{{ID: "k1", PlateNumber: "CJ 01 ABC", Make: "Dacia"}})
	})

	h.now = h.now.Add(23 * time.Hour)
	rec := h.do(h.request(http.MethodGet, "/customer", nil, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CJ 01 ABC")
	assert.Contains(t, rec.Body.String(), `<a href="/customer/cars/k1">CJ 01 ABC</a>`)

	// The visit above restarted the window.
	h.now = h.now.Add(23 * time.Hour)
	rec = h.do(h.request(http.MethodGet, "/customer", nil, false))
	require.Equal(t, http.StatusOK, rec.Code)

	h.now = h.now.Add(25 * time.Hour)
	rec = h.do(h.request(http.MethodGet, "/customer", nil, false))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, middleware.CustomerLoginPath, rec.Header().Get("Location"))
	_, ok := h.lookup(session.KeyCustomerExpiry)
	assert.False(t, ok)
}

func TestCustomer_UnauthorizedClearsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.loginCustomer()
	h.backend.Get("/api/customer/cars", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec := h.do(h.request(http.MethodGet, "/customer", nil, true))
	assert.Equal(t, middleware.CustomerLoginPath, rec.Header().Get("HX-Redirect"))

	for _, key := range []string{session.KeyCustomerToken, session.KeyCustomerUser, session.KeyCustomerExpiry} {
		_, ok := h.lookup(key)
		assert.False(t, ok, key)
	}
}

func TestCustomer_Logout(t *testing.T) {
	h := newHarness(t, nil)
	h.loginCustomer()

	rec := h.do(h.request(http.MethodPost, "/customer/logout", nil, false))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok := h.lookup(session.KeyCustomerToken)
	assert.False(t, ok)
}

func TestOTPRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.OTPPerMinute = 1
	h := newHarness(t, cfg)
	h.backend.Post("/api/customer/auth/send-otp", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := h.do(h.request(http.MethodPost, "/customer/login", url.Values{"phone": {"0722123456"}}, false))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = h.do(h.request(http.MethodPost, "/customer/login", url.Values{"phone": {"0733123456"}}, false))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCustomer_StationsByCoordinates(t *testing.T) {
	h := newHarness(t, nil)
	h.loginCustomer()
	h.backend.Get("/api/customer/stations", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, listOf([]domain.Branch{
			{ID: "b1", Name: "Statia Cluj", Latitude: 46.7712, Longitude: 23.6236},
			{ID: "b2", Name: "Statia Ploiesti", Latitude: 44.9365, Longitude: 26.0129},
			{ID: "b3", Name: "Statia Centru", Latitude: 44.4268, Longitude: 26.1025},
		}))
	})

	target := "/customer/stations?" + url.Values{"address": {"44.4268, 26.1025"}}.Encode()
	rec := h.do(h.request(http.MethodGet, target, nil, false))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	// Without a geocoder the origin is labelled by its coordinates.
	assert.Contains(t, body, "44.42680, 26.10250")
	centru := strings.Index(body, "Statia Centru")
	ploiesti := strings.Index(body, "Statia Ploiesti")
	cluj := strings.Index(body, "Statia Cluj")
	require.True(t, centru > 0 && ploiesti > 0 && cluj > 0)
	assert.Less(t, centru, ploiesti)
	assert.Less(t, ploiesti, cluj)
	assert.Contains(t, body, "0.0 km")
}

func TestCustomer_StationsWithoutAddress(t *testing.T) {
	h := newHarness(t, nil)
	h.loginCustomer()
	h.backend.Get("/api/customer/stations", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, listOf([]domain.Branch{{ID: "b1", Name: "Statia Cluj"}}))
	})

	rec := h.do(h.request(http.MethodGet, "/customer/stations", nil, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Statia Cluj")
	assert.NotContains(t, rec.Body.String(), " km<")
}

func TestStaff_BackendFailureRendersErrorPage(t *testing.T) {
	h := newHarness(t, nil)
	h.loginStaff()
	h.backend.Get("/api/companies", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusInternalServerError, map[string]string{"message": "db down"})
	})

	rec := h.do(h.request(http.MethodGet, "/admin/companies", nil, false))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="alert alert-danger"`)
	assert.Contains(t, body, i18n.T("errors.server"))
	assert.Contains(t, body, "API5XX")
	assert.NotContains(t, body, "db down")
	assert.Contains(t, body, `href="/admin/companies"`)
}
