package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/planwise/internal/metrics"
)

func TestMetricsByRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /events/{userId}/{eventId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Metrics(mux)

	counter := metrics.HTTPRequestsTotal.WithLabelValues("DELETE", "DELETE /events/{userId}/{eventId}", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest("DELETE", "/events/alice/"+id, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(counter); got != before+2 {
		t.Errorf("requests = %v, want %v", got, before+2)
	}
	if got := testutil.ToFloat64(metrics.ActiveRequests); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
}

func TestMetricsUnmatched(t *testing.T) {
	handler := Metrics(http.NewServeMux())
	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("requests = %v, want %v", got, before+1)
	}
}
