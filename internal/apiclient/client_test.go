package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/itp-portal/internal/config"
	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/metrics"
	"github.com/JonMunkholm/itp-portal/internal/session"
)

func newStaffSession(t *testing.T, access, refresh string) (*session.Session, session.StaffTokens) {
	t.Helper()
	sess := session.New(session.NewMemoryStore(), "sid-1")
	st := session.Staff(sess)
	if access != "" {
		require.NoError(t, st.SetTokens(context.Background(), access, refresh))
	}
	return sess, st
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_UsesConfigBaseURL(t *testing.T) {
	c := New(config.APIConfig{Scheme: "https", Host: "api.itp.ro", Port: 443, BasePath: "/api/", Timeout: time.Second})
	assert.Equal(t, "https://api.itp.ro/api", c.BaseURL())
}

func TestSend_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "ro", r.Header.Get("Accept-Language"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/companies/7", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "7", "name": "Auto SRL"}})
	}))
	defer srv.Close()

	_, st := newStaffSession(t, "tok", "r")
	api := NewWithBaseURL(srv.URL+"/api", "").Staff(st)

	co, err := api.Companies().Get(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Auto SRL", co.Name)
}

func TestStaff_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	var retried atomic.Int32

	var arrivals sync.WaitGroup
	arrivals.Add(2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			refreshCalls.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "r-old", body["refresh_token"])
			// keep the flight open long enough for the second caller to join
			time.Sleep(20 * time.Millisecond)
			writeJSON(w, http.StatusOK, TokenPair{AccessToken: "new", RefreshToken: "r-new"})
		case "/api/branches":
			switch r.Header.Get("Authorization") {
			case "Bearer old":
				// answer 401 only once both requests are in flight
				arrivals.Done()
				arrivals.Wait()
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			case "Bearer new":
				retried.Add(1)
				writeJSON(w, http.StatusOK, []domain.Branch{{ID: "1", Name: "Nord"}})
			default:
				t.Errorf("unexpected token %q", r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusBadRequest)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	client := NewWithBaseURL(srv.URL+"/api", "ro", WithMetrics(m))
	_, st := newStaffSession(t, "old", "r-old")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	pages := make([]Page[domain.Branch], 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pages[i], errs[i] = client.Staff(st).Branches().List(context.Background(), nil)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		require.Len(t, pages[i].Items, 1)
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), retried.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("success")))

	access, _ := st.AccessToken(context.Background())
	refresh, _ := st.RefreshToken(context.Background())
	assert.Equal(t, "new", access)
	assert.Equal(t, "r-new", refresh)
}

func TestStaff_RefreshFailureClearsTokens(t *testing.T) {
	var protectedCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "refresh revoked"})
			return
		}
		protectedCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
	}))
	defer srv.Close()

	_, st := newStaffSession(t, "old", "r-old")
	_, err := NewWithBaseURL(srv.URL, "ro").Staff(st).Me(context.Background())

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), protectedCalls.Load())

	access, _ := st.AccessToken(context.Background())
	assert.Empty(t, access)
}

func TestStaff_ReplaysOnlyOnce(t *testing.T) {
	var protectedCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			writeJSON(w, http.StatusOK, TokenPair{AccessToken: "new"})
			return
		}
		protectedCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, st := newStaffSession(t, "old", "r-old")
	_, err := NewWithBaseURL(srv.URL, "ro").Staff(st).Statistics(context.Background())

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(2), protectedCalls.Load())
}

func TestStaff_NoTokenShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be called")
	}))
	defer srv.Close()

	_, st := newStaffSession(t, "", "")
	_, err := NewWithBaseURL(srv.URL, "ro").Staff(st).Me(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestStaff_ExpiredJWTRefreshesFirst(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, StaffClaims{
		Role:             "super_admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))},
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path+" "+r.Header.Get("Authorization"))
		if r.URL.Path == "/auth/refresh" {
			writeJSON(w, http.StatusOK, TokenPair{AccessToken: "fresh", RefreshToken: "r2"})
			return
		}
		writeJSON(w, http.StatusOK, domain.AdminUser{Email: "ana@itp.ro"})
	}))
	defer srv.Close()

	_, st := newStaffSession(t, expired, "r1")
	u, err := NewWithBaseURL(srv.URL, "ro", WithClock(func() time.Time { return now })).Staff(st).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ana@itp.ro", u.Email)
	assert.Equal(t, []string{"/auth/refresh ", "/auth/me Bearer fresh"}, seen)
}

func TestStaff_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "parola" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Date de autentificare invalide", "code": "invalid_credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "a", "refresh_token": "r",
			"user": map[string]any{"email": body["email"], "role": "company_admin"},
		})
	}))
	defer srv.Close()

	_, st := newStaffSession(t, "", "")
	api := NewWithBaseURL(srv.URL, "ro").Staff(st)

	_, err := api.Login(context.Background(), "ana@itp.ro", "gresit")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid_credentials", apiErr.Code)
	assert.Equal(t, "Date de autentificare invalide", apiErr.Message)

	u, err := api.Login(context.Background(), "ana@itp.ro", "parola")
	require.NoError(t, err)
	assert.Equal(t, "company_admin", u.Role)
	access, _ := st.AccessToken(context.Background())
	assert.Equal(t, "a", access)
}

func TestCustomer_UnauthorizedClearsSession(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
		}
		assert.Equal(t, "Bearer ctok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	sess := session.New(session.NewMemoryStore(), "sid")
	cust := session.NewCustomer(sess, 0, nil)
	require.NoError(t, cust.Save(ctx, "ctok", domain.CustomerUser{ID: "c1"}))

	m := metrics.New(prometheus.NewRegistry())
	_, err := NewWithBaseURL(srv.URL, "ro", WithMetrics(m)).Customer(cust).Cars().List(ctx, nil)

	assert.ErrorIs(t, err, ErrCustomerUnauthorized)
	assert.Equal(t, int32(0), refreshCalls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CustomerLogouts.WithLabelValues("unauthorized")))
	for _, k := range []string{session.KeyCustomerToken, session.KeyCustomerUser, session.KeyCustomerExpiry} {
		_, ok, err := sess.Lookup(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
}

func TestCustomer_DocumentsPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customer/cars/42/documents", r.URL.Path)
		writeJSON(w, http.StatusCreated, domain.CarDocument{ID: "d1", Type: domain.DocumentRCA})
	}))
	defer srv.Close()

	ctx := context.Background()
	cust := session.NewCustomer(session.New(session.NewMemoryStore(), "sid"), 0, nil)
	require.NoError(t, cust.Save(ctx, "ctok", domain.CustomerUser{}))

	doc, err := NewWithBaseURL(srv.URL, "ro").Customer(cust).Documents("42").Create(ctx, domain.CarDocument{Type: domain.DocumentRCA})
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)
}

func TestVerifyOTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customer/auth/send-otp":
			w.WriteHeader(http.StatusNoContent)
		case "/customer/auth/verify-otp":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["code"] != "123456" {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Cod invalid", "code": "invalid_code"})
				return
			}
			writeJSON(w, http.StatusOK, OTPLogin{AccessToken: "ctok", User: domain.CustomerUser{ID: "c1", Phone: body["phone"]}})
		}
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL, "ro")
	require.NoError(t, c.SendOTP(context.Background(), "+40722123456"))

	_, err := c.VerifyOTP(context.Background(), "+40722123456", "000000")
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))

	login, err := c.VerifyOTP(context.Background(), "+40722123456", "123456")
	require.NoError(t, err)
	assert.Equal(t, "ctok", login.AccessToken)
	assert.Equal(t, "+40722123456", login.User.Phone)
}

func TestResource_AllFollowsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []domain.Discount{{ID: "d" + strconv.Itoa(page)}},
			"meta": map[string]int{"page": page, "total_pages": 2},
		})
	}))
	defer srv.Close()

	_, st := newStaffSession(t, "tok", "")
	all, err := NewWithBaseURL(srv.URL, "ro").Staff(st).Discounts().All(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "d1", all[0].ID)
	assert.Equal(t, "d2", all[1].ID)
}

func TestDecodePage(t *testing.T) {
	p, err := DecodePage[domain.Package]([]byte(`[{"id":"p1"},{"id":"p2"}]`))
	require.NoError(t, err)
	assert.Len(t, p.Items, 2)
	assert.Equal(t, 1, p.TotalPages)

	p, err = DecodePage[domain.Package]([]byte(`{"data":[{"id":"p3"}],"meta":{"page":3,"total_pages":5}}`))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 5, p.TotalPages)

	p, err = DecodePage[domain.Package]([]byte(`{"data":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.TotalPages)
}

func TestParseAPIError(t *testing.T) {
	e := parseAPIError("/users", 422, []byte(`{"message":"Date invalide","errors":{"email":["Email deja folosit"],"phone":"Telefon invalid"}}`))
	assert.Equal(t, "Date invalide", e.Message)
	assert.Equal(t, map[string]string{"email": "Email deja folosit", "phone": "Telefon invalid"}, e.Fields)

	e = parseAPIError("/users", 500, []byte(`{"data":{"message":"Eroare interna"}}`))
	assert.Equal(t, "Eroare interna", e.Message)

	e = parseAPIError("/users", 502, []byte(`<html>bad gateway</html>`))
	assert.Equal(t, "<html>bad gateway</html>", e.Message)
	assert.Contains(t, e.Error(), "502")
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/branches/:id", endpointLabel("/branches/123"))
	assert.Equal(t, "/customer/cars/:id/documents", endpointLabel("customer/cars/0b6f8a3e-1c2d-4e5f-8a9b-0c1d2e3f4a5b/documents"))
	assert.Equal(t, "/auth/refresh", endpointLabel("/auth/refresh"))
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sign := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.True(t, tokenExpired(sign(now.Add(-time.Second)), now))
	assert.True(t, tokenExpired(sign(now.Add(5*time.Second)), now))
	assert.False(t, tokenExpired(sign(now.Add(time.Hour)), now))
	assert.False(t, tokenExpired("opaque", now))

	claims, err := ParseStaffClaims(sign(now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}
