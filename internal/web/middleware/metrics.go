package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/itp-portal/internal/metrics"
)

// Metrics records request count and latency by chi route pattern.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			m.ObserveHTTP(r.Method, routePattern(r), strconv.Itoa(ww.status), time.Since(start))
		})
	}
}
