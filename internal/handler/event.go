package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/ics"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
	ws "github.com/dukerupert/planwise/internal/websocket"
)

// EventHandler serves one user's event collection.
type EventHandler struct {
	source store.Source
	hub    *ws.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewEventHandler(source store.Source, hub *ws.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{source: source, hub: hub, logger: logger, now: time.Now}
}

// owner checks that the {userId} path segment belongs to the caller.
func (h *EventHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := auth.Email(r.Context())
	if email == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	userKey := r.PathValue("userId")
	if auth.UserKey(email) != userKey {
		writeError(w, http.StatusForbidden, "Forbidden: Cannot access another user's events")
		return "", false
	}
	return userKey, true
}

func (h *EventHandler) publish(userKey, action, id string) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(userKey, ws.NewMessage("event", action, id, nil))
}

func (h *EventHandler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error(op, "error", err)
		writeError(w, status, "failed to "+op)
		return
	}
	writeError(w, status, err.Error())
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.owner(w, r)
	if !ok {
		return
	}

	events, err := h.source.List(r.Context(), userKey)
	if err != nil {
		h.fail(w, "list events", err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.owner(w, r)
	if !ok {
		return
	}

	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.source.Create(r.Context(), userKey, ev)
	if err != nil {
		h.fail(w, "create event", err)
		return
	}

	h.publish(userKey, "created", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.owner(w, r)
	if !ok {
		return
	}

	id := r.PathValue("eventId")
	events, err := h.source.List(r.Context(), userKey)
	if err != nil {
		h.fail(w, "get event", err)
		return
	}
	for _, ev := range events {
		if ev.ID == id {
			writeJSON(w, http.StatusOK, ev)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Event not found")
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.owner(w, r)
	if !ok {
		return
	}

	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id := r.PathValue("eventId")
	updated, err := h.source.Update(r.Context(), userKey, id, patch)
	if err != nil {
		h.fail(w, "update event", err)
		return
	}

	h.publish(userKey, "updated", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.owner(w, r)
	if !ok {
		return
	}

	id := r.PathValue("eventId")
	if err := h.source.Delete(r.Context(), userKey, id); err != nil {
		h.fail(w, "delete event", err)
		return
	}

	h.publish(userKey, "deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

// Export serves the collection as an iCalendar feed.
func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.owner(w, r)
	if !ok {
		return
	}

	events, err := h.source.List(r.Context(), userKey)
	if err != nil {
		h.fail(w, "export events", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, userKey))
	if err := ics.Write(w, auth.Email(r.Context()), events, h.now()); err != nil {
		h.logger.Error("write ics", "error", err)
	}
}
