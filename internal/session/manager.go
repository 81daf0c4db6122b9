package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/itp-portal/internal/config"
)

// Session is one browser's view of the store.
type Session struct {
	id    string
	store Store
}

// New binds a session id to a store.
func New(store Store, id string) *Session {
	return &Session{id: id, store: store}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Get returns the value of key or ErrNotFound.
func (s *Session) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, s.id, key)
}

// Lookup is Get with a found flag instead of ErrNotFound.
func (s *Session) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.store.Get(ctx, s.id, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores a value.
func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.id, key, value)
}

// Delete removes keys.
func (s *Session) Delete(ctx context.Context, keys ...string) error {
	return s.store.Delete(ctx, s.id, keys...)
}

// GetJSON decodes a JSON value into out. It reports false when unset.
func (s *Session) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.Lookup(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode session %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON.
func (s *Session) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}

// Pop returns and deletes a value.
func (s *Session) Pop(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Lookup(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return v, true, s.Delete(ctx, key)
}

type ctxKey struct{}

// NewContext attaches s to ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// Manager issues and reads the session cookie.
type Manager struct {
	store  Store
	name   string
	secure bool
	maxAge time.Duration
}

// NewManager creates a cookie manager over store.
func NewManager(store Store, cfg config.SessionConfig) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "itp_sid"
	}
	return &Manager{store: store, name: name, secure: cfg.CookieSecure, maxAge: cfg.MaxAge}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Load returns the session named by the request cookie, issuing a fresh id
// when the cookie is missing or malformed. The cookie is re-sent on every
// load so its Max-Age counts from the last visit.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	id := ""
	if c, err := r.Cookie(m.name); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return New(m.store, id)
}
