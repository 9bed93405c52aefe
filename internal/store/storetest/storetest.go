// Package storetest runs the behaviour every store.Source must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
)

// Harness describes the source under test. Context, when set, builds the
// request context for a user; sources keyed by credentials need it.
type Harness struct {
	New     func(t *testing.T) store.Source
	Context func(userKey string) context.Context
}

func (h Harness) ctx(userKey string) context.Context {
	if h.Context == nil {
		return context.Background()
	}
	return h.Context(userKey)
}

// Sample returns a valid timed event starting at the given hour on 2025-03-01 UTC.
func Sample(title string, hour int) model.Event {
	start := time.Date(2025, 3, 1, hour, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	ev := model.Event{
		Title:       title,
		Start:       start,
		End:         &end,
		Description: "notes",
		Location:    "Library",
		Attendees:   []string{"a@example.com"},
		Recurrence:  model.RecurrenceNone,
	}
	ev.Normalize()
	return ev
}

// Run exercises create, list, update and delete against h.
func Run(t *testing.T, h Harness) {
	t.Run("CreateThenList", func(t *testing.T) { testCreateThenList(t, h) })
	t.Run("InsertionOrder", func(t *testing.T) { testInsertionOrder(t, h) })
	t.Run("UpdatePreservesIdentity", func(t *testing.T) { testUpdate(t, h) })
	t.Run("UpdateClearsEnd", func(t *testing.T) { testUpdateClearsEnd(t, h) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, h) })
	t.Run("DeleteTwice", func(t *testing.T) { testDeleteTwice(t, h) })
	t.Run("UserIsolation", func(t *testing.T) { testIsolation(t, h) })
}

const userKey = "ada_example_com"

func testCreateThenList(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	before := time.Now().Truncate(time.Millisecond)

	created, err := s.Create(ctx, userKey, Sample("Study", 9))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if created.CreatedAt.Before(before) {
		t.Errorf("createdAt %v is before the call at %v", created.CreatedAt, before)
	}

	list, err := s.List(ctx, userKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != created.ID || got.Title != "Study" {
		t.Errorf("listed = %s %q, want %s %q", got.ID, got.Title, created.ID, "Study")
	}
	if !got.Start.Equal(created.Start) || got.End == nil || !got.End.Equal(*created.End) {
		t.Errorf("interval = %v-%v, want %v-%v", got.Start, got.End, created.Start, created.End)
	}
	if got.StartStr == "" {
		t.Error("startStr should be derived on read")
	}
	if got.ExtendedProps["location"] != "Library" {
		t.Errorf("extendedProps.location = %v, want Library", got.ExtendedProps["location"])
	}
}

func testInsertionOrder(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	titles := []string{"late", "early", "middle"}
	hours := []int{18, 7, 12}
	for i, title := range titles {
		if _, err := s.Create(ctx, userKey, Sample(title, hours[i])); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	list, err := s.List(ctx, userKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != len(titles) {
		t.Fatalf("list len = %d, want %d", len(list), len(titles))
	}
	for i, title := range titles {
		if list[i].Title != title {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Title, title)
		}
	}
}

func testUpdate(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	created, err := s.Create(ctx, userKey, Sample("Study", 9))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Study hard"
	updated, err := s.Update(ctx, userKey, created.ID, model.EventPatch{Title: &title, Attendees: []string{}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("id = %q, want %q", updated.ID, created.ID)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", updated.CreatedAt, created.CreatedAt)
	}
	if updated.UpdatedAt == nil || updated.UpdatedAt.Before(created.CreatedAt) {
		t.Errorf("updatedAt = %v, want >= createdAt %v", updated.UpdatedAt, created.CreatedAt)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}
	if updated.Location != "Library" {
		t.Errorf("location = %q, want unchanged", updated.Location)
	}
	if len(updated.Attendees) != 0 {
		t.Errorf("attendees = %v, want cleared", updated.Attendees)
	}

	list, err := s.List(ctx, userKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != created.ID {
		t.Errorf("listed id = %q, want %q", got.ID, created.ID)
	}
	if got.Title != title || got.Location != "Library" || len(got.Attendees) != 0 {
		t.Errorf("listed = %q %q %v, want patched fields", got.Title, got.Location, got.Attendees)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("listed createdAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
	if got.UpdatedAt == nil || got.UpdatedAt.Before(created.CreatedAt) {
		t.Errorf("listed updatedAt = %v, want set and >= createdAt %v", got.UpdatedAt, created.CreatedAt)
	}
	if created.UpdatedAt != nil && got.UpdatedAt != nil && !got.UpdatedAt.After(*created.UpdatedAt) {
		t.Errorf("listed updatedAt = %v, want after %v", got.UpdatedAt, created.UpdatedAt)
	}
}

func testUpdateClearsEnd(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	created, err := s.Create(ctx, userKey, Sample("Study", 9))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	allDay := true
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	updated, err := s.Update(ctx, userKey, created.ID, model.EventPatch{Start: &day, AllDay: &allDay, ClearEnd: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.End != nil {
		t.Errorf("end = %v, want cleared", updated.End)
	}

	list, err := s.List(ctx, userKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}
	got := list[0]
	if !got.AllDay || !got.Start.Equal(day) {
		t.Errorf("listed allDay = %v start = %v, want all-day on %v", got.AllDay, got.Start, day)
	}
	if got.End != nil || got.EndStr != "" {
		t.Errorf("listed end = %v %q, want open-ended", got.End, got.EndStr)
	}
}

func testUpdateMissing(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	title := "x"
	_, err := s.Update(ctx, userKey, "missing", model.EventPatch{Title: &title})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func testDeleteTwice(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	created, err := s.Create(ctx, userKey, Sample("Study", 9))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, userKey, created.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, userKey, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	list, err := s.List(ctx, userKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("list len = %d after delete, want 0", len(list))
	}
}

func testIsolation(t *testing.T, h Harness) {
	s, ctx := h.New(t), h.ctx(userKey)
	created, err := s.Create(ctx, userKey, Sample("Mine", 9))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bob := h.ctx("bob_example_com")
	list, err := s.List(bob, "bob_example_com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("other user sees %d events, want 0", len(list))
	}
	if err := s.Delete(bob, "bob_example_com", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-user delete err = %v, want ErrNotFound", err)
	}
}
