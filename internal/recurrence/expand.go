package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/planwise/internal/model"
)

// MaxOccurrences caps the expansion of a single event.
const MaxOccurrences = 1000

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"allDay"`
}

// Expand returns the occurrences of ev that overlap [from, to). A
// non-repeating event yields at most one occurrence.
func Expand(ev model.Event, from, to time.Time) ([]Occurrence, error) {
	dur := span(ev)
	occ := func(start time.Time) Occurrence {
		return Occurrence{EventID: ev.ID, Title: ev.Title, Start: start, End: start.Add(dur), AllDay: ev.AllDay}
	}
	overlaps := func(start time.Time) bool {
		if dur == 0 {
			return start.Before(to) && !start.Before(from)
		}
		return start.Before(to) && start.Add(dur).After(from)
	}

	freq, ok := freqByTag[ev.Recurrence]
	if !ok {
		if overlaps(ev.Start) {
			return []Occurrence{occ(ev.Start)}, nil
		}
		return nil, nil
	}

	r, err := rrule.NewRRule(rrule.ROption{Freq: freq, Dtstart: ev.Start})
	if err != nil {
		return nil, err
	}

	loc := ev.Start.Location()
	starts := r.Between(from.Add(-dur).In(loc), to.In(loc), true)
	var out []Occurrence
	for _, s := range starts {
		if !overlaps(s) {
			continue
		}
		out = append(out, occ(s))
		if len(out) >= MaxOccurrences {
			break
		}
	}
	return out, nil
}

// span is the length of every occurrence. Open-ended all-day events cover
// one day; open-ended timed events are treated as instants.
func span(ev model.Event) time.Duration {
	if ev.End != nil {
		return ev.End.Sub(ev.Start)
	}
	if ev.AllDay {
		return 24 * time.Hour
	}
	return 0
}
