// Package ics renders a user's events as an iCalendar feed.
package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/recurrence"
)

const ProductID = "-//planwise//calendar//EN"

// Build converts events into a PUBLISH calendar. stamp is used for DTSTAMP.
func Build(name string, events []model.Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + "@planwise")
		ve.SetDtStampTime(stamp.UTC())
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt.UTC())
		}
		if ev.UpdatedAt != nil {
			ve.SetModifiedAt(ev.UpdatedAt.UTC())
		}
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}

		if ev.AllDay {
			start := ev.Start.UTC()
			end := start.AddDate(0, 0, 1)
			if ev.End != nil {
				end = ev.End.UTC()
			}
			ve.SetAllDayStartAt(start)
			ve.SetAllDayEndAt(end)
		} else {
			ve.SetStartAt(ev.Start.UTC())
			if ev.End != nil {
				ve.SetEndAt(ev.End.UTC())
			}
		}

		for _, a := range ev.Attendees {
			ve.AddAttendee(a)
		}
		if rule := recurrence.RuleFor(ev.Recurrence); rule != "" {
			ve.AddRrule(rule)
		}
	}
	return cal
}

// Write serializes the feed to w.
func Write(w io.Writer, name string, events []model.Event, stamp time.Time) error {
	_, err := io.WriteString(w, Build(name, events, stamp).Serialize())
	return err
}
