package model

import (
	"errors"
	"strings"
	"time"
)

// Layouts used for the derived startStr/endStr fields.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is a known tag. The empty string counts as none.
func (r Recurrence) Valid() bool {
	switch r {
	case "", RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Repeats reports whether r describes a recurring event.
func (r Recurrence) Repeats() bool {
	return r != "" && r != RecurrenceNone
}

// Event is the normalized event object shared by every store and by the
// calendar view. The JSON shape matches what the calendar widget consumes.
type Event struct {
	ID            string         `json:"id,omitempty"`
	Title         string         `json:"title"`
	Start         time.Time      `json:"start"`
	End           *time.Time     `json:"end"`
	StartStr      string         `json:"startStr"`
	EndStr        string         `json:"endStr,omitempty"`
	AllDay        bool           `json:"allDay"`
	Description   string         `json:"description,omitempty"`
	Location      string         `json:"location,omitempty"`
	Attendees     []string       `json:"attendees,omitempty"`
	Recurrence    Recurrence     `json:"recurrence,omitempty"`
	ExtendedProps map[string]any `json:"extendedProps,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
}

var (
	ErrTitleRequired = errors.New("title is required")
	ErrEndNotAfter   = errors.New("end must be after start")
	ErrRecurrence    = errors.New("recurrence must be none, daily, weekly, monthly, or yearly")
)

// Normalize recomputes the derived fields: startStr/endStr from the
// timestamps and the description/location/attendees copies in extendedProps.
// Other extendedProps keys are left alone.
func (e *Event) Normalize() {
	e.StartStr = formatEventTime(e.Start, e.AllDay)
	e.EndStr = ""
	if e.End != nil {
		e.EndStr = formatEventTime(*e.End, e.AllDay)
	}

	if e.ExtendedProps == nil {
		e.ExtendedProps = make(map[string]any)
	}
	setOrDelete(e.ExtendedProps, "description", e.Description)
	setOrDelete(e.ExtendedProps, "location", e.Location)
	if len(e.Attendees) > 0 {
		e.ExtendedProps["attendees"] = append([]string(nil), e.Attendees...)
	} else {
		delete(e.ExtendedProps, "attendees")
	}
	if len(e.ExtendedProps) == 0 {
		e.ExtendedProps = nil
	}
}

// Validate checks the invariants every store enforces before persisting.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleRequired
	}
	if e.End != nil && !e.End.After(e.Start) {
		return ErrEndNotAfter
	}
	if !e.Recurrence.Valid() {
		return ErrRecurrence
	}
	return nil
}

// Clone returns a deep copy so callers can mutate slices and maps safely.
func (e Event) Clone() Event {
	out := e
	if e.End != nil {
		end := *e.End
		out.End = &end
	}
	if e.UpdatedAt != nil {
		u := *e.UpdatedAt
		out.UpdatedAt = &u
	}
	if e.Attendees != nil {
		out.Attendees = append([]string(nil), e.Attendees...)
	}
	if e.ExtendedProps != nil {
		out.ExtendedProps = make(map[string]any, len(e.ExtendedProps))
		for k, v := range e.ExtendedProps {
			out.ExtendedProps[k] = v
		}
	}
	return out
}

func formatEventTime(t time.Time, allDay bool) string {
	if t.IsZero() {
		return ""
	}
	if allDay {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

func setOrDelete(m map[string]any, key, value string) {
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

// EventPatch is a partial update. Nil fields are left unchanged and
// ExtendedProps keys are merged onto the existing map. ClearEnd drops the
// end and wins over End.
type EventPatch struct {
	Title         *string        `json:"title,omitempty"`
	Start         *time.Time     `json:"start,omitempty"`
	End           *time.Time     `json:"end,omitempty"`
	ClearEnd      bool           `json:"clearEnd,omitempty"`
	AllDay        *bool          `json:"allDay,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Location      *string        `json:"location,omitempty"`
	Attendees     []string       `json:"attendees"`
	Recurrence    *Recurrence    `json:"recurrence,omitempty"`
	ExtendedProps map[string]any `json:"extendedProps,omitempty"`
}

// Apply merges p onto e. ID and CreatedAt are never touched.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.ClearEnd {
		e.End = nil
	} else if p.End != nil {
		end := *p.End
		e.End = &end
	}
	if p.AllDay != nil {
		e.AllDay = *p.AllDay
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Attendees != nil {
		e.Attendees = append([]string(nil), p.Attendees...)
	}
	if p.Recurrence != nil {
		e.Recurrence = *p.Recurrence
	}
	if len(p.ExtendedProps) > 0 {
		if e.ExtendedProps == nil {
			e.ExtendedProps = make(map[string]any, len(p.ExtendedProps))
		}
		for k, v := range p.ExtendedProps {
			e.ExtendedProps[k] = v
		}
	}
}

// PatchFrom builds a patch that overwrites every user-editable field of e.
func PatchFrom(e Event) EventPatch {
	title, desc, loc, allDay, rec := e.Title, e.Description, e.Location, e.AllDay, e.Recurrence
	start := e.Start
	p := EventPatch{
		Title:       &title,
		Start:       &start,
		AllDay:      &allDay,
		Description: &desc,
		Location:    &loc,
		Recurrence:  &rec,
		Attendees:   []string{},
	}
	if e.End != nil {
		end := *e.End
		p.End = &end
	} else {
		p.ClearEnd = true
	}
	if len(e.Attendees) > 0 {
		p.Attendees = append([]string(nil), e.Attendees...)
	}
	if len(e.ExtendedProps) > 0 {
		p.ExtendedProps = make(map[string]any, len(e.ExtendedProps))
		for k, v := range e.ExtendedProps {
			p.ExtendedProps[k] = v
		}
	}
	return p
}
