package session

import (
	"context"
	"strconv"
	"time"

	"github.com/JonMunkholm/itp-portal/internal/domain"
)

// DefaultCustomerTTL is the fixed customer session window.
const DefaultCustomerTTL = 24 * time.Hour

// CustomerState is a live customer login.
type CustomerState struct {
	Token     string
	User      domain.CustomerUser
	ExpiresAt time.Time
}

// Customer manages the customer portal login stored under
// customer_access_token, customer_user and customer_session_expiry. The
// expiry is epoch milliseconds; a session is valid up to and including it.
type Customer struct {
	s   *Session
	ttl time.Duration
	now func() time.Time
}

// NewCustomer returns the customer view of s. A zero ttl means 24h and a nil
// clock means time.Now.
func NewCustomer(s *Session, ttl time.Duration, now func() time.Time) *Customer {
	if ttl <= 0 {
		ttl = DefaultCustomerTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Customer{s: s, ttl: ttl, now: now}
}

// Save starts a session window at now.
func (c *Customer) Save(ctx context.Context, token string, user domain.CustomerUser) error {
	if err := c.s.Set(ctx, KeyCustomerToken, token); err != nil {
		return err
	}
	if err := c.s.SetJSON(ctx, KeyCustomerUser, user); err != nil {
		return err
	}
	return c.setExpiry(ctx)
}

// Get returns the live session or nil. An expired or partial session is
// cleared.
func (c *Customer) Get(ctx context.Context) (*CustomerState, error) {
	token, ok, err := c.s.Lookup(ctx, KeyCustomerToken)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		return nil, c.Clear(ctx)
	}

	raw, _, err := c.s.Lookup(ctx, KeyCustomerExpiry)
	if err != nil {
		return nil, err
	}
	expiry, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil || c.now().UnixMilli() > expiry {
		return nil, c.Clear(ctx)
	}

	var user domain.CustomerUser
	if _, err := c.s.GetJSON(ctx, KeyCustomerUser, &user); err != nil {
		return nil, c.Clear(ctx)
	}

	return &CustomerState{Token: token, User: user, ExpiresAt: time.UnixMilli(expiry)}, nil
}

// Touch restarts the window of a live session and reports whether one
// existed.
func (c *Customer) Touch(ctx context.Context) (bool, error) {
	st, err := c.Get(ctx)
	if err != nil || st == nil {
		return false, err
	}
	return true, c.setExpiry(ctx)
}

// Clear removes all three customer keys.
func (c *Customer) Clear(ctx context.Context) error {
	return c.s.Delete(ctx, KeyCustomerToken, KeyCustomerUser, KeyCustomerExpiry)
}

// AccessToken returns the bearer of a live session, or "".
func (c *Customer) AccessToken(ctx context.Context) (string, error) {
	st, err := c.Get(ctx)
	if err != nil || st == nil {
		return "", err
	}
	return st.Token, nil
}

func (c *Customer) setExpiry(ctx context.Context) error {
	exp := c.now().Add(c.ttl).UnixMilli()
	return c.s.Set(ctx, KeyCustomerExpiry, strconv.FormatInt(exp, 10))
}
