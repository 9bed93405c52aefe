package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/database"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
	ws "github.com/dukerupert/planwise/internal/websocket"
)

const aliceKey = "alice_example_com"

func setupEventHandler(t *testing.T) (*EventHandler, *ws.Hub) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	hub := ws.NewHub(slog.Default())
	return NewEventHandler(store.NewEventStore(db), hub, slog.Default()), hub
}

func eventRequest(method, userKey, eventID string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	target := "/events/" + userKey
	if eventID != "" {
		target += "/" + eventID
	}
	req := httptest.NewRequest(method, target, &buf)
	req.SetPathValue("userId", userKey)
	if eventID != "" {
		req.SetPathValue("eventId", eventID)
	}
	ctx := auth.WithIdentity(req.Context(), auth.Identity{Email: "Alice@Example.com"})
	return req.WithContext(ctx)
}

func studyEvent() model.Event {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	return model.Event{Title: "Study", Start: start, End: &end}
}

func createEvent(t *testing.T, h *EventHandler, ev model.Event) model.Event {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, eventRequest("POST", aliceKey, "", ev))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var got model.Event
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestEventListUnauthenticated(t *testing.T) {
	h, _ := setupEventHandler(t)
	req := httptest.NewRequest("GET", "/events/"+aliceKey, nil)
	req.SetPathValue("userId", aliceKey)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestEventListOtherUser(t *testing.T) {
	h, _ := setupEventHandler(t)
	rec := httptest.NewRecorder()
	h.List(rec, eventRequest("GET", "bob_example_com", "", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestEventListEmpty(t *testing.T) {
	h, _ := setupEventHandler(t)
	rec := httptest.NewRecorder()
	h.List(rec, eventRequest("GET", aliceKey, "", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestEventCreateThenList(t *testing.T) {
	h, _ := setupEventHandler(t)

	before := time.Now().Add(-time.Second)
	created := createEvent(t, h, studyEvent())
	if created.ID == "" {
		t.Error("created event has no id")
	}
	if created.CreatedAt.Before(before) {
		t.Errorf("createdAt = %v, want >= %v", created.CreatedAt, before)
	}
	if created.StartStr != "2025-03-01T09:00:00Z" {
		t.Errorf("startStr = %q", created.StartStr)
	}
	rec := httptest.NewRecorder()
	h.List(rec, eventRequest("GET", aliceKey, "", nil))
	var events []model.Event
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].ID != created.ID {
		t.Errorf("events = %+v", events)
	}
}

func TestEventCreateInvalid(t *testing.T) {
	h, _ := setupEventHandler(t)

	ev := studyEvent()
	end := ev.Start
	ev.End = &end
	rec := httptest.NewRecorder()
	h.Create(rec, eventRequest("POST", aliceKey, "", ev))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	req := eventRequest("POST", aliceKey, "", nil)
	req.Body = http.NoBody
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEventCreateDuplicateID(t *testing.T) {
	h, _ := setupEventHandler(t)
	ev := studyEvent()
	ev.ID = "fixed"
	createEvent(t, h, ev)

	rec := httptest.NewRecorder()
	h.Create(rec, eventRequest("POST", aliceKey, "", ev))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestEventGet(t *testing.T) {
	h, _ := setupEventHandler(t)
	created := createEvent(t, h, studyEvent())

	rec := httptest.NewRecorder()
	h.Get(rec, eventRequest("GET", aliceKey, created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, eventRequest("GET", aliceKey, "missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEventUpdate(t *testing.T) {
	h, _ := setupEventHandler(t)
	created := createEvent(t, h, studyEvent())

	rec := httptest.NewRecorder()
	h.Update(rec, eventRequest("PUT", aliceKey, created.ID, map[string]any{"title": "Study hard"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got model.Event
	json.NewDecoder(rec.Body).Decode(&got)
	if got.ID != created.ID || got.Title != "Study hard" {
		t.Errorf("updated = %s %q", got.ID, got.Title)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", created.CreatedAt, got.CreatedAt)
	}
	if got.UpdatedAt == nil {
		t.Error("updatedAt not set")
	}
}

func TestEventUpdateMissing(t *testing.T) {
	h, _ := setupEventHandler(t)
	rec := httptest.NewRecorder()
	h.Update(rec, eventRequest("PUT", aliceKey, "missing", map[string]any{"title": "x"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEventDeleteTwice(t *testing.T) {
	h, _ := setupEventHandler(t)
	created := createEvent(t, h, studyEvent())

	rec := httptest.NewRecorder()
	h.Delete(rec, eventRequest("DELETE", aliceKey, created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("first delete status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	h.Delete(rec, eventRequest("DELETE", aliceKey, created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEventExport(t *testing.T) {
	h, _ := setupEventHandler(t)
	createEvent(t, h, studyEvent())

	rec := httptest.NewRecorder()
	h.Export(rec, eventRequest("GET", aliceKey, "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "SUMMARY:Study") {
		t.Errorf("body missing event: %s", body)
	}
}

func TestEventPublishesToOwner(t *testing.T) {
	h, hub := setupEventHandler(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), auth.Identity{Email: "alice@example.com"})
		ws.HandleWebSocket(hub, nil, slog.Default())(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs := dialHub(ctx, t, srv.URL)

	for hub.ClientCount(aliceKey) == 0 {
		if ctx.Err() != nil {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	created := createEvent(t, h, studyEvent())

	select {
	case msg := <-msgs:
		if msg.Type != "event_created" || msg.ID != created.ID {
			t.Errorf("message = %+v", msg)
		}
	case <-ctx.Done():
		t.Fatal("no notification")
	}
}
