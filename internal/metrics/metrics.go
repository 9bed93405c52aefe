// Package metrics registers the Prometheus collectors for planwise.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/planner"
	"github.com/dukerupert/planwise/internal/store"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planwise_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planwise_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planwise_http_active_requests",
			Help: "Current number of active HTTP requests",
		},
	)

	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planwise_store_operations_total",
			Help: "Event store operations by backend, operation and outcome",
		},
		[]string{"backend", "operation", "outcome"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planwise_store_operation_duration_seconds",
			Help:    "Duration of event store operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)

	PlannerResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planwise_planner_results_total",
			Help: "Planner requests by outcome",
		},
		[]string{"outcome"},
	)

	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planwise_auth_attempts_total",
			Help: "Authentication attempts by kind and outcome",
		},
		[]string{"kind", "outcome"}, // register/login, success/failure
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome is the label recorded for a store call's error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, store.ErrInvalid):
		return "invalid"
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrForbidden):
		return "unauthorized"
	}
	return "error"
}

func TrackPlan(res planner.Result) {
	outcome := "failure"
	if _, ok := res.(planner.Success); ok {
		outcome = "success"
	}
	PlannerResultsTotal.WithLabelValues(outcome).Inc()
}

func TrackAuthAttempt(kind string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	AuthAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

// Source wraps a store.Source and records every call.
type Source struct {
	backend string
	next    store.Source
}

func InstrumentSource(backend string, next store.Source) *Source {
	return &Source{backend: backend, next: next}
}

func (s *Source) observe(op string, start time.Time, err error) {
	StoreOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	StoreOperationsTotal.WithLabelValues(s.backend, op, Outcome(err)).Inc()
}

func (s *Source) List(ctx context.Context, userKey string) ([]model.Event, error) {
	start := time.Now()
	events, err := s.next.List(ctx, userKey)
	s.observe("list", start, err)
	return events, err
}

func (s *Source) Create(ctx context.Context, userKey string, ev model.Event) (*model.Event, error) {
	start := time.Now()
	out, err := s.next.Create(ctx, userKey, ev)
	s.observe("create", start, err)
	return out, err
}

func (s *Source) Update(ctx context.Context, userKey, eventID string, patch model.EventPatch) (*model.Event, error) {
	start := time.Now()
	out, err := s.next.Update(ctx, userKey, eventID, patch)
	s.observe("update", start, err)
	return out, err
}

func (s *Source) Delete(ctx context.Context, userKey, eventID string) error {
	start := time.Now()
	err := s.next.Delete(ctx, userKey, eventID)
	s.observe("delete", start, err)
	return err
}
