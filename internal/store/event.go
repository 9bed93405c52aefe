package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/planwise/internal/model"
)

type EventStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

const eventCols = `id, title, description, location, start_time, end_time, all_day, attendees, recurrence, extended_props, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var (
		e             model.Event
		end, updated  sql.NullTime
		allDayInt     int
		attendees     string
		extendedProps string
		rec           string
	)
	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Start, &end, &allDayInt,
		&attendees, &rec, &extendedProps, &e.CreatedAt, &updated)
	if err != nil {
		return nil, err
	}
	e.AllDay = allDayInt != 0
	e.Recurrence = model.Recurrence(rec)
	if end.Valid {
		t := end.Time
		e.End = &t
	}
	if updated.Valid {
		t := updated.Time
		e.UpdatedAt = &t
	}
	if err := json.Unmarshal([]byte(attendees), &e.Attendees); err != nil {
		return nil, fmt.Errorf("decode attendees: %w", err)
	}
	if err := json.Unmarshal([]byte(extendedProps), &e.ExtendedProps); err != nil {
		return nil, fmt.Errorf("decode extended props: %w", err)
	}
	if len(e.Attendees) == 0 {
		e.Attendees = nil
	}
	e.Normalize()
	return &e, nil
}

func (s *EventStore) List(ctx context.Context, userKey string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE user_key = ? ORDER BY seq`,
		userKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Get(ctx context.Context, userKey, eventID string) (*model.Event, error) {
	return s.get(ctx, s.db, userKey, eventID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *EventStore) get(ctx context.Context, q querier, userKey, eventID string) (*model.Event, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE user_key = ? AND id = ?`,
		userKey, eventID,
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Create stores ev at the end of the user's collection. A caller-supplied id
// is kept; otherwise a UUID is assigned.
func (s *EventStore) Create(ctx context.Context, userKey string, ev model.Event) (*model.Event, error) {
	ev = ev.Clone()
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = s.now().UTC()
	ev.UpdatedAt = nil
	ev.Normalize()

	args, err := eventArgs(ev)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (user_key, id, title, description, location, start_time, end_time, all_day, attendees, recurrence, extended_props, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append([]any{userKey, ev.ID}, append(args, ev.CreatedAt)...)...,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("event %s: %w", ev.ID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return s.Get(ctx, userKey, ev.ID)
}

// Update merges patch onto the stored event. The id and createdAt are kept
// and updatedAt is set from the store clock.
func (s *EventStore) Update(ctx context.Context, userKey, eventID string, patch model.EventPatch) (*model.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ev, err := s.get(ctx, tx, userKey, eventID)
	if err != nil {
		return nil, err
	}
	patch.Apply(ev)
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	updated := s.now().UTC()
	ev.UpdatedAt = &updated
	ev.Normalize()

	args, err := eventArgs(*ev)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, description = ?, location = ?, start_time = ?, end_time = ?, all_day = ?, attendees = ?, recurrence = ?, extended_props = ?, updated_at = ?
		 WHERE user_key = ? AND id = ?`,
		append(args, updated, userKey, eventID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	out, err := s.get(ctx, tx, userKey, eventID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func (s *EventStore) Delete(ctx context.Context, userKey, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE user_key = ? AND id = ?`, userKey, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// eventArgs returns the column values shared by insert and update, in
// eventCols order from title through extended_props.
func eventArgs(ev model.Event) ([]any, error) {
	attendees := ev.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	att, err := json.Marshal(attendees)
	if err != nil {
		return nil, fmt.Errorf("encode attendees: %w", err)
	}
	props := ev.ExtendedProps
	if props == nil {
		props = map[string]any{}
	}
	ext, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encode extended props: %w", err)
	}

	var end sql.NullTime
	if ev.End != nil {
		end = sql.NullTime{Time: ev.End.UTC(), Valid: true}
	}
	var allDayInt int
	if ev.AllDay {
		allDayInt = 1
	}
	rec := ev.Recurrence
	if rec == "" {
		rec = model.RecurrenceNone
	}
	return []any{ev.Title, ev.Description, ev.Location, ev.Start.UTC(), end, allDayInt, string(att), string(rec), string(ext)}, nil
}
