package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/planwise/internal/metrics"
)

// Metrics records request counts and latency labelled by the matched route
// pattern. It must wrap the ServeMux so r.Pattern is populated.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.ActiveRequests.Inc()
		defer metrics.ActiveRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		rt := route(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, rt, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, rt).Observe(time.Since(start).Seconds())
	})
}
