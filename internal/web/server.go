// Package web provides the HTTP server of the ITP portal: the staff
// administration screens under /admin and the customer portal under
// /customer, rendered server side and driven by HTMX.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/config"
	"github.com/JonMunkholm/itp-portal/internal/geo"
	"github.com/JonMunkholm/itp-portal/internal/metrics"
	"github.com/JonMunkholm/itp-portal/internal/otp"
	"github.com/JonMunkholm/itp-portal/internal/session"
	"github.com/JonMunkholm/itp-portal/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Deps are the collaborators of the server.
type Deps struct {
	Config   *config.Config
	API      *apiclient.Client
	Sessions *session.Manager
	Geocoder *geo.Geocoder
	Metrics  *metrics.Metrics

	// Gatherer serves /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Server is the HTTP server of the portal.
type Server struct {
	cfg      *config.Config
	api      *apiclient.Client
	sessions *session.Manager
	geocoder *geo.Geocoder
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	now      func() time.Time
	cooldown otp.Cooldown

	globalLimiter *middleware.RateLimiter
	otpLimiter    *middleware.RateLimiter

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		api:      d.API,
		sessions: d.Sessions,
		geocoder: d.Geocoder,
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		now:      d.Now,
		router:   chi.NewRouter(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.geocoder == nil {
		s.geocoder = geo.NewGeocoder("", "", 0)
	}
	s.cooldown = otp.New(d.Config.OTP.ResendCooldown)
	s.cooldown.Now = s.now

	rate := d.Config.Rate
	s.globalLimiter = middleware.NewRateLimiter("global", rate.RequestsPerMinute, rate.Burst, d.Metrics)
	s.otpLimiter = middleware.NewRateLimiter("otp", rate.OTPPerMinute, int(rate.OTPPerMinute), d.Metrics)

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
	if s.cfg.Rate.Enabled {
		s.router.Use(s.globalLimiter.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(s.sessions))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin", http.StatusFound)
		})

		// Staff
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/login/validate/{field}", s.handleLoginValidate)
		r.Post("/logout", s.handleLogout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff)

			r.Get("/", s.handleDashboard)
			r.Get("/statistics.xlsx", s.handleStatisticsExport)

			companiesScreen().mount(r, s)
			branchesScreen().mount(r, s)
			usersScreen().mount(r, s)
			discountsScreen().mount(r, s)
			packagesScreen().mount(r, s)
		})

		// Customer
		r.Route("/customer", func(r chi.Router) {
			r.Get("/login", s.handleCustomerLoginPage)
			r.With(s.limitOTP).Post("/login", s.handleCustomerLogin)
			r.Post("/login/validate/{field}", s.handleCustomerLoginValidate)
			r.Get("/verify", s.handleVerifyPage)
			r.With(s.limitOTP).Post("/verify", s.handleVerify)
			r.Get("/verify/resend", s.handleResendBlock)
			r.With(s.limitOTP).Post("/verify/resend", s.handleResend)
			r.Post("/logout", s.handleCustomerLogout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCustomer(s.cfg.Session.CustomerTTL, s.now))

				r.Get("/", s.handleCars)
				r.Get("/stations", s.handleStations)
				carsScreen().mount(r, s)
			})
		})
	})
}

func (s *Server) limitOTP(next http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return next
	}
	return s.otpLimiter.Middleware(next)
}

// Run starts background housekeeping tied to ctx.
func (s *Server) Run(ctx context.Context) {
	go s.globalLimiter.Cleanup(ctx, 5*time.Minute)
	go s.otpLimiter.Cleanup(ctx, 5*time.Minute)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr(), "backend", s.api.BaseURL())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
