package session

import (
	"context"

	"github.com/JonMunkholm/itp-portal/internal/domain"
)

// StaffTokens is the staff login of a session: an access and a refresh
// token plus the cached profile.
type StaffTokens struct {
	s *Session
}

// Staff returns the staff token view of s.
func Staff(s *Session) StaffTokens {
	return StaffTokens{s: s}
}

// SessionID identifies the browser; concurrent refreshes are shared per id.
func (t StaffTokens) SessionID() string {
	return t.s.ID()
}

// AccessToken returns the current access token, or "" when logged out.
func (t StaffTokens) AccessToken(ctx context.Context) (string, error) {
	v, _, err := t.s.Lookup(ctx, KeyAccessToken)
	return v, err
}

// RefreshToken returns the refresh token, or "".
func (t StaffTokens) RefreshToken(ctx context.Context) (string, error) {
	v, _, err := t.s.Lookup(ctx, KeyRefreshToken)
	return v, err
}

// SetTokens stores a token pair. An empty refresh token keeps the old one.
func (t StaffTokens) SetTokens(ctx context.Context, access, refresh string) error {
	if err := t.s.Set(ctx, KeyAccessToken, access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return t.s.Set(ctx, KeyRefreshToken, refresh)
}

// Clear logs the staff user out.
func (t StaffTokens) Clear(ctx context.Context) error {
	return t.s.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyStaffUser)
}

// LoggedIn reports whether an access token is present.
func (t StaffTokens) LoggedIn(ctx context.Context) (bool, error) {
	v, err := t.AccessToken(ctx)
	return v != "", err
}

// SetUser caches the staff profile for the layout header.
func (t StaffTokens) SetUser(ctx context.Context, u domain.AdminUser) error {
	u.Password = ""
	return t.s.SetJSON(ctx, KeyStaffUser, u)
}

// User returns the cached profile.
func (t StaffTokens) User(ctx context.Context) (domain.AdminUser, bool, error) {
	var u domain.AdminUser
	ok, err := t.s.GetJSON(ctx, KeyStaffUser, &u)
	return u, ok, err
}
