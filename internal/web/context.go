package web

import (
	"net/http"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/session"
)

// sessionOf returns the browser session loaded by middleware.LoadSession.
func sessionOf(r *http.Request) *session.Session {
	return session.FromContext(r.Context())
}

// staffAPI is the backend as seen by the request's staff login.
func (s *Server) staffAPI(r *http.Request) *apiclient.StaffAPI {
	return s.api.Staff(session.Staff(sessionOf(r)))
}

func (s *Server) customerSession(r *http.Request) *session.Customer {
	return session.NewCustomer(sessionOf(r), s.cfg.Session.CustomerTTL, s.now)
}

// customerAPI is the backend as seen by the request's customer login.
func (s *Server) customerAPI(r *http.Request) *apiclient.CustomerAPI {
	return s.api.Customer(s.customerSession(r))
}
