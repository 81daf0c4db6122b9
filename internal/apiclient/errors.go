package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSessionExpired means the staff tokens could not be refreshed and
	// were cleared. The user must log in again.
	ErrSessionExpired = errors.New("staff session expired")

	// ErrCustomerUnauthorized means the backend rejected the customer token.
	// The customer session has been cleared.
	ErrCustomerUnauthorized = errors.New("customer session unauthorized")
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status   int
	Endpoint string
	Message  string
	Code     string

	// Fields holds per-field messages when the backend reports them.
	Fields map[string]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("backend %s: %d %s (%s)", e.Endpoint, e.Status, msg, e.Code)
	}
	return fmt.Sprintf("backend %s: %d %s", e.Endpoint, e.Status, msg)
}

// StatusOf returns the HTTP status of an APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorBody covers the error shapes the backend emits.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Errors  json.RawMessage `json:"errors"`
	Data    *struct {
		Message string `json:"message"`
	} `json:"data"`
}

func parseAPIError(endpoint string, status int, body []byte) *APIError {
	e := &APIError{Status: status, Endpoint: endpoint}

	var b errorBody
	if err := json.Unmarshal(body, &b); err != nil {
		e.Message = strings.TrimSpace(truncate(string(body), 200))
		return e
	}

	e.Code = b.Code
	switch {
	case b.Message != "":
		e.Message = b.Message
	case b.Data != nil && b.Data.Message != "":
		e.Message = b.Data.Message
	case b.Error != "":
		e.Message = b.Error
	}
	e.Fields = parseFieldErrors(b.Errors)
	return e
}

// parseFieldErrors accepts {"field": "msg"} and {"field": ["msg", ...]}.
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	out := make(map[string]string, len(generic))
	for field, v := range generic {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[field] = s
			continue
		}
		var list []string
		if json.Unmarshal(v, &list) == nil && len(list) > 0 {
			out[field] = list[0]
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
