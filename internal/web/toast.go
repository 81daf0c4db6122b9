package web

// toast.go maps errors to the localized messages shown in toasts.
//
// Lookup order:
//  1. Sentinel errors (expired sessions, validation, cancelled requests)
//  2. Backend *APIError: the backend's own message when it sent one,
//     otherwise a message chosen by status code
//  3. Case-insensitive patterns over the error text
//  4. errors.unknown (ERR000)
//
// Codes are quoted by users to support staff:
//
//	AUTH001 staff session expired      AUTH002 customer logged out
//	AUTH003 wrong credentials          AUTH004 forbidden
//	VAL001  form validation failed     VAL002  submit already running
//	API404  not found                  API409  conflict
//	API429  backend rate limit         API5XX  backend failure
//	API000  backend message passed through
//	NET001  backend unreachable        NET002  timeout
//	NET003  cancelled                  GEO001  address not found
//	ERR000  unknown

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/form"
	"github.com/JonMunkholm/itp-portal/internal/geo"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
)

// UserMessage is what the user sees for an error.
type UserMessage struct {
	Key     string // i18n key
	Message string // resolved text, or the backend's own message
	Code    string // support reference
}

type sentinel struct {
	err  error
	key  string
	code string
}

var sentinels = []sentinel{
	{apiclient.ErrSessionExpired, "errors.sessionExpired", "AUTH001"},
	{apiclient.ErrCustomerUnauthorized, "errors.customerLoggedOut", "AUTH002"},
	{form.ErrInvalid, "errors.validation", "VAL001"},
	{form.ErrBusy, "errors.busy", "VAL002"},
	{geo.ErrNotFound, "errors.geocoding", "GEO001"},
	{context.DeadlineExceeded, "errors.timeout", "NET002"},
	{context.Canceled, "errors.cancelled", "NET003"},
}

type errorPattern struct {
	pattern string
	key     string
	code    string
}

// Patterns are matched in order; specific before general.
var errorPatterns = []errorPattern{
	{"connection refused", "errors.network", "NET001"},
	{"no such host", "errors.network", "NET001"},
	{"connection reset", "errors.network", "NET001"},
	{"timeout", "errors.timeout", "NET002"},
	{"rate limit", "errors.rateLimit", "API429"},
}

// MapError converts err to the message shown to the user.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return message(s.key, s.code)
		}
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return mapAPIError(apiErr)
	}

	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(text, p.pattern) {
			return message(p.key, p.code)
		}
	}

	return message(i18n.KeyUnknownError, "ERR000")
}

func mapAPIError(e *apiclient.APIError) UserMessage {
	switch {
	case e.Status == http.StatusUnauthorized:
		return withBackendMessage(message("errors.unauthorized", "AUTH003"), e)
	case e.Status == http.StatusForbidden:
		return message("errors.forbidden", "AUTH004")
	case e.Message != "" && e.Status < 500:
		return UserMessage{Key: "", Message: e.Message, Code: "API000"}
	case e.Status == http.StatusNotFound:
		return message("errors.notFound", "API404")
	case e.Status == http.StatusConflict:
		return message("errors.conflict", "API409")
	case e.Status == http.StatusTooManyRequests:
		return message("errors.rateLimit", "API429")
	case e.Status >= 500:
		return message("errors.server", "API5XX")
	}
	return withBackendMessage(message(i18n.KeyUnknownError, "ERR000"), e)
}

func withBackendMessage(m UserMessage, e *apiclient.APIError) UserMessage {
	if e.Message != "" {
		m.Message = e.Message
	}
	return m
}

func message(key, code string) UserMessage {
	return UserMessage{Key: key, Message: i18n.Error(key), Code: code}
}

// IsUserFacing reports whether err maps to something more specific than
// the unknown error.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != "ERR000"
}
