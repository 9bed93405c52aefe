package metrics

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/planner"
	"github.com/dukerupert/planwise/internal/store"
)

type stubSource struct{ err error }

func (s stubSource) List(context.Context, string) ([]model.Event, error) { return nil, s.err }
func (s stubSource) Create(_ context.Context, _ string, ev model.Event) (*model.Event, error) {
	return &ev, s.err
}
func (s stubSource) Update(context.Context, string, string, model.EventPatch) (*model.Event, error) {
	return nil, s.err
}
func (s stubSource) Delete(context.Context, string, string) error { return s.err }

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("event x: %w", store.ErrNotFound), "not_found"},
		{store.ErrConflict, "conflict"},
		{store.ErrInvalid, "invalid"},
		{auth.ErrUnauthorized, "unauthorized"},
		{fmt.Errorf("dial tcp: refused"), "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInstrumentSource(t *testing.T) {
	ok := InstrumentSource("test_ok", stubSource{})
	missing := InstrumentSource("test_missing", stubSource{err: store.ErrNotFound})
	ctx := context.Background()

	ok.List(ctx, "u")
	ok.List(ctx, "u")
	ok.Create(ctx, "u", model.Event{Title: "x"})
	missing.Delete(ctx, "u", "e1")

	if got := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_ok", "list", "ok")); got != 2 {
		t.Errorf("list ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_ok", "create", "ok")); got != 1 {
		t.Errorf("create ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_missing", "delete", "not_found")); got != 1 {
		t.Errorf("delete not_found = %v, want 1", got)
	}
}

func TestTrackPlan(t *testing.T) {
	before := testutil.ToFloat64(PlannerResultsTotal.WithLabelValues("failure"))
	TrackPlan(planner.Failure{Reason: planner.ReasonNoFile})
	if got := testutil.ToFloat64(PlannerResultsTotal.WithLabelValues("failure")); got != before+1 {
		t.Errorf("failures = %v, want %v", got, before+1)
	}
}
