package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/JonMunkholm/itp-portal/internal/domain"
)

// StaffAPI is the staff view of the backend for one browser session.
type StaffAPI struct {
	c      *Client
	tokens StaffTokens
}

// Staff binds the client to a session's staff tokens.
func (c *Client) Staff(tokens StaffTokens) *StaffAPI {
	return &StaffAPI{c: c, tokens: tokens}
}

// Call performs an authenticated call. A 401 triggers one shared refresh
// and a single replay with the new token.
func (s *StaffAPI) Call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrSessionExpired
	}

	// Skip a round trip that is bound to fail.
	if tokenExpired(token, s.c.now()) {
		if token, err = s.c.refreshStaff(ctx, s.tokens, token); err != nil {
			return err
		}
	}

	r, err := s.c.send(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	if r.status != http.StatusUnauthorized {
		return decode(path, r, out)
	}

	fresh, err := s.c.refreshStaff(ctx, s.tokens, token)
	if err != nil {
		return err
	}
	r, err = s.c.send(ctx, method, path, query, body, fresh)
	if err != nil {
		return err
	}
	if r.status == http.StatusUnauthorized {
		_ = s.tokens.Clear(ctx)
		return ErrSessionExpired
	}
	return decode(path, r, out)
}

// loginResponse is the body of POST /auth/login.
type loginResponse struct {
	TokenPair
	User domain.AdminUser `json:"user"`
}

// Login exchanges credentials for tokens and stores them in the session.
func (s *StaffAPI) Login(ctx context.Context, email, password string) (domain.AdminUser, error) {
	var resp loginResponse
	body := map[string]string{"email": email, "password": password}
	if err := s.c.Public().Call(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return domain.AdminUser{}, err
	}
	if resp.AccessToken == "" {
		return domain.AdminUser{}, &APIError{Status: http.StatusUnauthorized, Endpoint: "/auth/login", Code: "invalid_credentials"}
	}
	if err := s.tokens.SetTokens(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		return domain.AdminUser{}, err
	}
	return resp.User, nil
}

// Logout tells the backend and clears the local tokens even if that fails.
func (s *StaffAPI) Logout(ctx context.Context) error {
	refresh, _ := s.tokens.RefreshToken(ctx)
	err := s.Call(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"refresh_token": refresh}, nil)
	if cerr := s.tokens.Clear(ctx); cerr != nil {
		return cerr
	}
	if errors.Is(err, ErrSessionExpired) {
		return nil
	}
	return err
}

// Me returns the logged in staff profile.
func (s *StaffAPI) Me(ctx context.Context) (domain.AdminUser, error) {
	var u domain.AdminUser
	err := s.Call(ctx, http.MethodGet, "/auth/me", nil, nil, &u)
	return u, err
}

func (s *StaffAPI) Companies() Resource[domain.Company] {
	return NewResource[domain.Company](s, "/companies")
}

func (s *StaffAPI) Branches() Resource[domain.Branch] {
	return NewResource[domain.Branch](s, "/branches")
}

func (s *StaffAPI) Users() Resource[domain.AdminUser] {
	return NewResource[domain.AdminUser](s, "/users")
}

func (s *StaffAPI) Packages() Resource[domain.Package] {
	return NewResource[domain.Package](s, "/packages")
}

func (s *StaffAPI) Subscriptions() Resource[domain.PackageSubscription] {
	return NewResource[domain.PackageSubscription](s, "/package-subscriptions")
}

func (s *StaffAPI) Discounts() Resource[domain.Discount] {
	return NewResource[domain.Discount](s, "/discounts")
}

// Roles lists the assignable staff roles.
func (s *StaffAPI) Roles(ctx context.Context) ([]domain.Role, error) {
	return NewResource[domain.Role](s, "/roles").All(ctx, nil)
}

// Statistics returns the dashboard summary.
func (s *StaffAPI) Statistics(ctx context.Context) (domain.Statistics, error) {
	var st domain.Statistics
	err := s.Call(ctx, http.MethodGet, "/statistics", nil, nil, &st)
	return st, err
}
