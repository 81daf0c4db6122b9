package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/itp-portal/internal/logging"
)

// RefreshPath is the staff token refresh endpoint.
const RefreshPath = "/auth/refresh"

// refreshTimeout bounds a refresh that outlives the request that started it.
const refreshTimeout = 10 * time.Second

// StaffTokens is where a browser session keeps its staff tokens.
type StaffTokens interface {
	SessionID() string
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// TokenPair is the body of login and refresh responses.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refreshStaff returns a usable access token after failed was rejected.
//
// At most one refresh runs per session id; concurrent callers wait for it
// and share its result. A caller whose failed token has already been
// replaced skips the refresh and uses the current token. On failure the
// tokens are cleared and ErrSessionExpired is returned.
func (c *Client) refreshStaff(ctx context.Context, tokens StaffTokens, failed string) (string, error) {
	if cur, err := tokens.AccessToken(ctx); err == nil && cur != "" && cur != failed {
		c.recordRefresh("reused")
		return cur, nil
	}

	ch := c.refreshes.DoChan(tokens.SessionID(), func() (any, error) {
		// The flight outlives whichever request started it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.doRefresh(fctx, tokens, failed)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.recordRefresh("shared")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context, tokens StaffTokens, failed string) (string, error) {
	log := logging.FromContext(ctx)

	// A flight that started after another one finished sees its result here.
	if cur, err := tokens.AccessToken(ctx); err == nil && cur != "" && cur != failed {
		c.recordRefresh("reused")
		return cur, nil
	}

	refresh, err := tokens.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	if refresh == "" {
		c.recordRefresh("failure")
		_ = tokens.Clear(ctx)
		return "", ErrSessionExpired
	}

	r, err := c.send(ctx, http.MethodPost, RefreshPath, nil, map[string]string{"refresh_token": refresh}, "")
	if err == nil {
		var pair TokenPair
		if err = decode(RefreshPath, r, &pair); err == nil && pair.AccessToken == "" {
			err = fmt.Errorf("refresh returned no access token")
		}
		if err == nil {
			if err := tokens.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
				return "", fmt.Errorf("store refreshed tokens: %w", err)
			}
			c.recordRefresh("success")
			log.Debug("staff token refreshed")
			return pair.AccessToken, nil
		}
	}

	c.recordRefresh("failure")
	log.Warn("staff token refresh failed", "error", err)
	if cerr := tokens.Clear(ctx); cerr != nil {
		log.Error("failed to clear staff tokens", "error", cerr)
	}
	return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
}

func (c *Client) recordRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordTokenRefresh(outcome)
	}
}
