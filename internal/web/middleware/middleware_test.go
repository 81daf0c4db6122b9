package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/session"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("auth", 60, 2, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:2222").Code)

	rec := hit("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:1111").Code)

	// One token per second refills.
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:4444").Code)
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter("auth", 60, 1, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	require.Equal(t, 2, rl.Len())

	now = now.Add(2 * time.Minute)
	rl.sweep()
	assert.Equal(t, 1, rl.Len())
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "trusted proxy with X-Real-IP",
			remote:  "10.1.2.3:5555",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:    "trusted proxy with forwarded chain",
			remote:  "127.0.0.1:5555",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.1"},
			want:    "198.51.100.9",
		},
		{
			name:    "untrusted peer keeps its address",
			remote:  "192.0.2.50:5555",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "192.0.2.50:5555",
		},
		{
			name:    "garbage header ignored",
			remote:  "10.1.2.3:5555",
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.1.2.3:5555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP([]string{"10.0.0.0/8", "127.0.0.1", "bogus"})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedirect(t *testing.T) {
	t.Run("plain request gets 303", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Redirect(rec, httptest.NewRequest(http.MethodGet, "/admin", nil), StaffLoginPath)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, StaffLoginPath, rec.Header().Get("Location"))
	})

	t.Run("htmx request gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		Redirect(rec, req, StaffLoginPath)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StaffLoginPath, rec.Header().Get("HX-Redirect"))
		assert.Empty(t, rec.Header().Get("Location"))
	})
}

func withSession(req *http.Request, s *session.Session) *http.Request {
	return req.WithContext(session.NewContext(req.Context(), s))
}

func TestRequireStaff(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	sess := session.New(store, "sid-staff")

	var seen domain.AdminUser
	h := RequireStaff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = StaffUser(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), sess))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, StaffLoginPath, rec.Header().Get("Location"))

	tokens := session.Staff(sess)
	require.NoError(t, tokens.SetTokens(ctx, "access", "refresh"))
	require.NoError(t, tokens.SetUser(ctx, domain.AdminUser{FirstName: "Ana", LastName: "Pop"}))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), sess))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Pop", seen.FullName())
}

func TestRequireCustomer(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	sess := session.New(store, "sid-customer")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := session.NewCustomer(sess, 24*time.Hour, clock)
	require.NoError(t, c.Save(ctx, "tok", domain.CustomerUser{ID: "c1", Phone: "+40722000111"}))

	var seen *session.CustomerState
	h := RequireCustomer(24*time.Hour, clock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Customer(r.Context())
	}))

	// A visit 23h later passes and restarts the window.
	now = now.Add(23 * time.Hour)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/customer", nil), sess))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "tok", seen.Token)

	raw, err := sess.Get(ctx, session.KeyCustomerExpiry)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(now.Add(24*time.Hour).UnixMilli(), 10), raw)

	// Past the renewed window the keys are cleared and the visitor redirected.
	now = now.Add(24*time.Hour + time.Millisecond)
	seen = nil
	req := httptest.NewRequest(http.MethodGet, "/customer", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(req, sess))
	assert.Nil(t, seen)
	assert.Equal(t, CustomerLoginPath, rec.Header().Get("HX-Redirect"))

	_, ok, err := sess.Lookup(ctx, session.KeyCustomerToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(true)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")

	rec = httptest.NewRecorder()
	SecurityHeaders(false)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}
