package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/itp-portal/internal/config"
	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/metrics"
)

// storeContract exercises the behavior every Store must share. Stores that
// expire sessions natively pass a nil setNow and skip the purge checks.
func storeContract(t *testing.T, s Store, setNow func(time.Time)) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if setNow != nil {
		setNow(t0)
	}

	_, err := s.Get(ctx, "a", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", "k", "v1"))
	require.NoError(t, s.Set(ctx, "a", "k", "v2"))
	require.NoError(t, s.Set(ctx, "a", "other", "x"))
	require.NoError(t, s.Set(ctx, "b", "k", "b1"))

	v, err := s.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	v, err = s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "b1", v)

	require.NoError(t, s.Delete(ctx, "a", "k", "missing"))
	_, err = s.Get(ctx, "a", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err = s.Get(ctx, "a", "other")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Set(ctx, "c", "login", "tok"))
	if setNow == nil {
		return
	}

	// b is rewritten later and survives the purge. c keeps its login value
	// because another of its keys was written recently.
	setNow(t0.Add(2 * time.Hour))
	require.NoError(t, s.Set(ctx, "b", "k", "b2"))
	require.NoError(t, s.Set(ctx, "c", "visit", "1"))

	n, err := s.Purge(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, "a", "other")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err = s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "b2", v)
	v, err = s.Get(ctx, "c", "login")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	// Once the whole session goes quiet it is purged with every key.
	n, err = s.Purge(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = s.Get(ctx, "c", "login")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	storeContract(t, s, func(now time.Time) { s.now = func() time.Time { return now } })
	assert.Equal(t, 0, s.Len())
	require.NoError(t, s.Close())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s, func(now time.Time) { s.now = func() time.Time { return now } })
}

func TestSQLiteStore_ReopenKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "sid", KeyAccessToken, "tok"))
	require.NoError(t, s.Close())

	s, err = OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "sid", KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestOpen_Memory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Session.Store = config.StoreMemory
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.Session.Store = "etcd"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCustomer_ExpiresAfterExactly24h(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(), "sid")

	t0 := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	now := t0
	c := NewCustomer(sess, 0, func() time.Time { return now })

	user := domain.CustomerUser{ID: "c1", Phone: "+40722123456"}
	require.NoError(t, c.Save(ctx, "ctok", user))

	now = t0.Add(24 * time.Hour)
	st, err := c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "ctok", st.Token)
	assert.Equal(t, user, st.User)
	assert.True(t, st.ExpiresAt.Equal(t0.Add(24*time.Hour)))

	now = t0.Add(24*time.Hour + time.Millisecond)
	st, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	for _, k := range []string{KeyCustomerToken, KeyCustomerUser, KeyCustomerExpiry} {
		_, ok, err := sess.Lookup(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
}

func TestCustomer_TouchRenewsWindow(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(), "sid")
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	now := t0
	c := NewCustomer(sess, 24*time.Hour, func() time.Time { return now })

	ok, err := c.Touch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Save(ctx, "ctok", domain.CustomerUser{ID: "c1"}))

	now = t0.Add(20 * time.Hour)
	ok, err = c.Touch(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	now = t0.Add(30 * time.Hour)
	tok, err := c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ctok", tok)

	now = t0.Add(44*time.Hour + time.Millisecond)
	tok, err = c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestCustomer_MalformedExpiryClears(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(), "sid")
	require.NoError(t, sess.Set(ctx, KeyCustomerToken, "ctok"))
	require.NoError(t, sess.Set(ctx, KeyCustomerExpiry, "soon"))

	st, err := NewCustomer(sess, 0, nil).Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	_, ok, _ := sess.Lookup(ctx, KeyCustomerToken)
	assert.False(t, ok)
}

func TestCustomer_DoesNotTouchStaffKeys(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(), "sid")
	require.NoError(t, Staff(sess).SetTokens(ctx, "a", "r"))

	c := NewCustomer(sess, 0, nil)
	require.NoError(t, c.Save(ctx, "ctok", domain.CustomerUser{}))
	require.NoError(t, c.Clear(ctx))

	tok, err := Staff(sess).AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", tok)
}

func TestStaffTokens(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(), "sid-1")
	st := Staff(sess)

	assert.Equal(t, "sid-1", st.SessionID())
	in, err := st.LoggedIn(ctx)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, st.SetTokens(ctx, "a1", "r1"))
	require.NoError(t, st.SetTokens(ctx, "a2", ""))
	a, _ := st.AccessToken(ctx)
	r, _ := st.RefreshToken(ctx)
	assert.Equal(t, "a2", a)
	assert.Equal(t, "r1", r)

	require.NoError(t, st.SetUser(ctx, domain.AdminUser{Email: "ana@itp.ro", Password: "secret"}))
	u, ok, err := st.User(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ana@itp.ro", u.Email)
	assert.Empty(t, u.Password)

	require.NoError(t, st.Clear(ctx))
	a, _ = st.AccessToken(ctx)
	assert.Empty(t, a)
	_, ok, _ = st.User(ctx)
	assert.False(t, ok)
}

func TestSession_Pop(t *testing.T) {
	ctx := context.Background()
	sess := New(NewMemoryStore(), "sid")
	require.NoError(t, sess.Set(ctx, KeyFlash, "saved"))

	v, ok, err := sess.Pop(ctx, KeyFlash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "saved", v)

	_, ok, err = sess.Pop(ctx, KeyFlash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_Load(t *testing.T) {
	m := NewManager(NewMemoryStore(), config.SessionConfig{CookieName: "itp_sid", MaxAge: time.Hour})

	rec := httptest.NewRecorder()
	s := m.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, s.ID())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "itp_sid", cookies[0].Name)
	assert.Equal(t, s.ID(), cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	again := m.Load(rec, req)
	assert.Equal(t, s.ID(), again.ID())

	// A returning browser gets the same id with a fresh Max-Age.
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, s.ID(), cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "itp_sid", Value: "not-a-uuid"})
	fresh := m.Load(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", fresh.ID())
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	s := New(NewMemoryStore(), "sid")
	assert.Same(t, s, FromContext(NewContext(context.Background(), s)))
}

func TestJanitor_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return t0 }
	require.NoError(t, store.Set(ctx, "old", "k", "v"))

	m := metrics.New(prometheus.NewRegistry())
	j := &Janitor{
		Store:   store,
		MaxAge:  time.Hour,
		Metrics: m,
		Now:     func() time.Time { return t0.Add(2 * time.Hour) },
	}

	n, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsPurged))
	assert.Equal(t, 0, store.Len())
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &Janitor{Store: NewMemoryStore(), MaxAge: time.Hour, Interval: time.Millisecond}

	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJanitor_DailyCustomerOutlivesMaxAge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store.now = clock

	c := NewCustomer(New(store, "sid"), 24*time.Hour, clock)
	require.NoError(t, c.Save(ctx, "tok", domain.CustomerUser{ID: "c1"}))

	j := &Janitor{Store: store, MaxAge: 720 * time.Hour, Now: clock}
	for day := 1; day <= 45; day++ {
		now = now.Add(20 * time.Hour)
		live, err := c.Touch(ctx)
		require.NoError(t, err)
		require.True(t, live, "day %d", day)

		_, err = j.RunOnce(ctx)
		require.NoError(t, err)
	}

	st, err := c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "tok", st.Token)

	// Abandoned for longer than MaxAge, the session is purged.
	now = now.Add(721 * time.Hour)
	_, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}
