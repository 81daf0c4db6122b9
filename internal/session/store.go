// Package session keeps per-browser state on the server: staff tokens, the
// customer portal session and small UI values such as the OTP countdown and
// flash toasts. A browser is identified by a random id in a cookie; values
// live in a pluggable Store.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/itp-portal/internal/config"
)

// Keys stored per browser session.
const (
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	KeyStaffUser      = "staff_user"
	KeyCustomerToken  = "customer_access_token"
	KeyCustomerUser   = "customer_user"
	KeyCustomerExpiry = "customer_session_expiry"
	KeyOTPSentAt      = "otp_sent_at"
	KeyOTPPhone       = "otp_phone"
	KeyFlash          = "flash"
)

// ErrNotFound is returned by Get when the key is not set.
var ErrNotFound = errors.New("session: key not found")

// Store persists string values by session id and key.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, error)
	Set(ctx context.Context, sid, key, value string) error
	Delete(ctx context.Context, sid string, keys ...string) error

	// Purge removes every session with no write since olderThan and returns
	// how many values went with them. A session is judged by its newest
	// value, so keys written once at login live as long as the session is
	// in use. Stores with native expiry may return 0.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}

// Open builds the store selected by cfg.Session.Store and applies its
// migrations.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Session.Store {
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	case config.StoreRedis:
		return OpenRedisStore(ctx, cfg.Redis, cfg.Session.MaxAge)
	case config.StorePostgres:
		return OpenPostgresStore(ctx, cfg.Database)
	case config.StoreSQLite:
		return OpenSQLiteStore(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}
