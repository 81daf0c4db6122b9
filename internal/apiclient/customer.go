package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/JonMunkholm/itp-portal/internal/domain"
	"github.com/JonMunkholm/itp-portal/internal/logging"
)

// CustomerTokens is where a browser session keeps its customer login.
type CustomerTokens interface {
	AccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// CustomerAPI is the customer portal view of the backend.
type CustomerAPI struct {
	c      *Client
	tokens CustomerTokens
}

// Customer binds the client to a session's customer login.
func (c *Client) Customer(tokens CustomerTokens) *CustomerAPI {
	return &CustomerAPI{c: c, tokens: tokens}
}

// Call performs an authenticated call. There is no refresh: a 401 clears the
// customer session and returns ErrCustomerUnauthorized.
func (a *CustomerAPI) Call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := a.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrCustomerUnauthorized
	}

	r, err := a.c.send(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	if r.status == http.StatusUnauthorized {
		logging.FromContext(ctx).Info("customer token rejected, logging out")
		if a.c.metrics != nil {
			a.c.metrics.RecordCustomerLogout("unauthorized")
		}
		if err := a.tokens.Clear(ctx); err != nil {
			return err
		}
		return ErrCustomerUnauthorized
	}
	return decode(path, r, out)
}

// SendOTP asks the backend to text a login code to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	return c.Public().Call(ctx, http.MethodPost, "/customer/auth/send-otp", nil, map[string]string{"phone": phone}, nil)
}

// OTPLogin is the result of a successful code check.
type OTPLogin struct {
	AccessToken string              `json:"access_token"`
	User        domain.CustomerUser `json:"user"`
}

// VerifyOTP exchanges a code for a customer token.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (OTPLogin, error) {
	var out OTPLogin
	body := map[string]string{"phone": phone, "code": code}
	if err := c.Public().Call(ctx, http.MethodPost, "/customer/auth/verify-otp", nil, body, &out); err != nil {
		return OTPLogin{}, err
	}
	if out.AccessToken == "" {
		return OTPLogin{}, &APIError{Status: http.StatusUnauthorized, Endpoint: "/customer/auth/verify-otp", Code: "invalid_code"}
	}
	return out, nil
}

// Me returns the customer profile.
func (a *CustomerAPI) Me(ctx context.Context) (domain.CustomerUser, error) {
	var u domain.CustomerUser
	err := a.Call(ctx, http.MethodGet, "/customer/me", nil, nil, &u)
	return u, err
}

func (a *CustomerAPI) Cars() Resource[domain.CustomerCar] {
	return NewResource[domain.CustomerCar](a, "/customer/cars")
}

func (a *CustomerAPI) Documents(carID string) Resource[domain.CarDocument] {
	return NewResource[domain.CarDocument](a, "/customer/cars/"+url.PathEscape(carID)+"/documents")
}

func (a *CustomerAPI) Reminders(carID string) Resource[domain.CarReminder] {
	return NewResource[domain.CarReminder](a, "/customer/cars/"+url.PathEscape(carID)+"/reminders")
}

// Stations lists the active inspection stations.
func (a *CustomerAPI) Stations(ctx context.Context) ([]domain.Branch, error) {
	return NewResource[domain.Branch](a, "/customer/stations").All(ctx, nil)
}
