package gcal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/recurrence"
)

// toGoogle maps a normalized event to a provider event. String-valued
// extendedProps keys travel as private extended properties.
func toGoogle(ev model.Event) *calendar.Event {
	ge := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay {
		ge.Start = &calendar.EventDateTime{Date: ev.Start.Format(model.DateLayout)}
		end := ev.Start.AddDate(0, 0, 1)
		if ev.End != nil {
			end = *ev.End
		}
		ge.End = &calendar.EventDateTime{Date: end.Format(model.DateLayout)}
	} else {
		ge.Start = &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		end := ev.Start
		if ev.End != nil {
			end = *ev.End
		}
		ge.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	}
	for _, a := range ev.Attendees {
		ge.Attendees = append(ge.Attendees, &calendar.EventAttendee{Email: a})
	}
	if rule := recurrence.RuleFor(ev.Recurrence); rule != "" {
		ge.Recurrence = []string{"RRULE:" + rule}
	}

	private := map[string]string{}
	for k, v := range ev.ExtendedProps {
		if k == "description" || k == "location" || k == "attendees" {
			continue
		}
		if s, ok := v.(string); ok {
			private[k] = s
		}
	}
	if len(private) > 0 {
		ge.ExtendedProperties = &calendar.EventExtendedProperties{Private: private}
	}
	return ge
}

// fromGoogle maps a provider event back to the normalized model.
func fromGoogle(ge *calendar.Event) (model.Event, error) {
	ev := model.Event{
		ID:          ge.Id,
		Title:       ge.Summary,
		Description: ge.Description,
		Location:    ge.Location,
		Recurrence:  model.RecurrenceNone,
	}

	start, allDay, err := parseDateTime(ge.Start)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start: %w", ge.Id, err)
	}
	ev.Start, ev.AllDay = start, allDay
	if ge.End != nil {
		end, _, err := parseDateTime(ge.End)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %s end: %w", ge.Id, err)
		}
		// A one-day all-day event is how an open end is written.
		if end.After(start) && !(allDay && end.Equal(start.AddDate(0, 0, 1))) {
			ev.End = &end
		}
	}

	for _, a := range ge.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}
	for _, line := range ge.Recurrence {
		if !strings.HasPrefix(line, "RRULE:") {
			continue
		}
		if tag, err := recurrence.TagFor(line); err == nil {
			ev.Recurrence = tag
		}
		break
	}
	if ge.ExtendedProperties != nil && len(ge.ExtendedProperties.Private) > 0 {
		ev.ExtendedProps = make(map[string]any, len(ge.ExtendedProperties.Private))
		for k, v := range ge.ExtendedProperties.Private {
			ev.ExtendedProps[k] = v
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, ge.Created); err == nil {
		ev.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, ge.Updated); err == nil && ge.Updated != ge.Created {
		ev.UpdatedAt = &t
	}
	ev.Normalize()
	return ev, nil
}

func parseDateTime(dt *calendar.EventDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, fmt.Errorf("missing date")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	t, err := time.Parse(model.DateLayout, dt.Date)
	return t, true, err
}

// sortByCreated orders events the way they were added.
func sortByCreated(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}

// toTask maps an upcoming provider event to a task table row.
func toTask(ge *calendar.Event) model.Task {
	t := model.Task{
		ID:          ge.Id,
		Title:       ge.Summary,
		Status:      ge.Status,
		Priority:    priorityFrom(ge.Description),
		Description: ge.Description,
		Location:    ge.Location,
	}
	if ge.End != nil {
		t.DueDate = firstNonEmpty(ge.End.DateTime, ge.End.Date)
	}
	if ge.Start != nil {
		t.StartTime = firstNonEmpty(ge.Start.DateTime, ge.Start.Date)
	}
	return t
}

// priorityFrom reads a "Priority: <value>" line from a description.
func priorityFrom(desc string) string {
	_, after, ok := strings.Cut(desc, "Priority:")
	if !ok {
		return model.PriorityNormal
	}
	line, _, _ := strings.Cut(strings.TrimSpace(after), "\n")
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return model.PriorityNormal
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
