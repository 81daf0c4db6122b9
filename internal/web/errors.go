package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are logged with their technical detail and request id, then shown
// to the user as a toast chosen by MapError. Expired sessions are not shown
// in place: staff go to /login and customers to /customer/login, with the
// message carried over as a flash toast.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/i18n"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/web/middleware"
	"github.com/JonMunkholm/itp-portal/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// respondError handles error responses with user-friendly messages.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := MapError(err)

	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		s.redirectWithToast(w, r, middleware.StaffLoginPath, msg)
		return
	case errors.Is(err, apiclient.ErrCustomerUnauthorized):
		s.redirectWithToast(w, r, middleware.CustomerLoginPath, msg)
		return
	}

	if status := apiclient.StatusOf(err); status == http.StatusNotFound || status == http.StatusForbidden {
		statusCode = status
	}

	logger := logging.FromContext(r.Context())
	level := slog.LevelError
	if statusCode < 500 {
		level = slog.LevelWarn
	}
	logger.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, msg)
	case wantsJSON(r):
		respondErrorJSON(w, msg, statusCode)
	default:
		respondErrorHTML(w, r, msg, statusCode)
	}
}

func (s *Server) redirectWithToast(w http.ResponseWriter, r *http.Request, to string, msg UserMessage) {
	s.setFlash(r, templates.Toast{Tone: "warning", Message: msg.Message, Code: msg.Code})
	middleware.Redirect(w, r, to)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Key,
		Message: msg.Message,
		Code:    msg.Code,
	})
}

// respondErrorHTML writes a standalone error page. The navigation follows
// the area the failed request belongs to.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg UserMessage, statusCode int) {
	p := templates.Page{Title: i18n.T("errors.title")}
	switch {
	case strings.HasPrefix(r.URL.Path, "/admin"):
		p.Area = templates.AreaStaff
	case strings.HasPrefix(r.URL.Path, "/customer"):
		p.Area = templates.AreaCustomer
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_ = templates.Layout(p, templates.ErrorAlert(msg.Message, msg.Code)).Render(r.Context(), w)
}

// renderErrorPartial answers an HTMX request with an out of band toast and
// leaves the swap target untouched. htmx does not swap error statuses, so
// the response is a 200 with HX-Reswap: none.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg UserMessage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Reswap", "none")
	w.WriteHeader(http.StatusOK)
	_ = templates.ToastView(&templates.Toast{Tone: "danger", Message: msg.Message, Code: msg.Code}).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// isFragment reports whether the request wants a fragment rather than a
// whole page. Boosted navigation swaps the body and needs the full layout.
func isFragment(r *http.Request) bool {
	return isHTMX(r) && r.Header.Get("HX-Boosted") != "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
