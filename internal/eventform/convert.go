package eventform

import (
	"fmt"
	"time"

	"github.com/dukerupert/planwise/internal/model"
)

// DefaultDuration is applied to timed events submitted without an end.
const DefaultDuration = time.Hour

// Convert turns a validated form into a normalized event in loc. It only
// fails on input that Validate would have rejected.
//
// End policy: a timed event without end fields lasts DefaultDuration; an
// all-day event without an end date is open-ended (End == nil). All-day
// dates are floating and always anchored at UTC midnight.
func Convert(in Input, loc *time.Location) (model.Event, error) {
	in = trimmed(in)
	if loc == nil || in.StartTime == "" {
		loc = time.UTC
	}

	start, end, err := interval(in, loc)
	if err != nil {
		return model.Event{}, err
	}
	allDay := in.StartTime == ""
	if end == nil && !allDay {
		e := start.Add(DefaultDuration)
		end = &e
	}

	rec := in.Recurrence
	if rec == "" {
		rec = model.RecurrenceNone
	}

	ev := model.Event{
		ID:          in.ID,
		Title:       in.Title,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Description: in.Description,
		Location:    in.Location,
		Recurrence:  rec,
	}
	if len(in.Attendees) > 0 {
		ev.Attendees = append([]string(nil), in.Attendees...)
	}
	ev.Normalize()
	return ev, nil
}

// ToForm rebuilds form input from an event, rendering dates and times in loc.
func ToForm(ev model.Event, loc *time.Location) Input {
	if loc == nil || ev.AllDay {
		loc = time.UTC
	}
	in := Input{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Recurrence:  ev.Recurrence,
	}
	if len(ev.Attendees) > 0 {
		in.Attendees = append([]string(nil), ev.Attendees...)
	}

	start := ev.Start.In(loc)
	in.StartDate = start.Format(DateLayout)
	if !ev.AllDay {
		in.StartTime = start.Format(TimeLayout)
	}
	if ev.End != nil {
		end := ev.End.In(loc)
		in.EndDate = end.Format(DateLayout)
		if !ev.AllDay {
			in.EndTime = end.Format(TimeLayout)
		}
	}
	return in
}

// SetInterval overwrites the form's start and end with a timed interval.
func (in *Input) SetInterval(start, end time.Time, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	s, e := start.In(loc), end.In(loc)
	in.AllDay = false
	in.StartDate = s.Format(DateLayout)
	in.StartTime = s.Format(TimeLayout)
	in.EndDate = e.Format(DateLayout)
	in.EndTime = e.Format(TimeLayout)
}

func interval(in Input, loc *time.Location) (time.Time, *time.Time, error) {
	start, err := combine(in.StartDate, in.StartTime, loc)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("start: %w", err)
	}
	if in.EndDate == "" {
		return start, nil, nil
	}
	end, err := combine(in.EndDate, in.EndTime, loc)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("end: %w", err)
	}
	return start, &end, nil
}

func combine(date, clock string, loc *time.Location) (time.Time, error) {
	if clock == "" {
		return time.ParseInLocation(DateLayout, date, loc)
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
}
