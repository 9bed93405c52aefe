// Package eventform holds the event form schema, its validator, and the
// conversion between form input and the normalized model.Event.
package eventform

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/planwise/internal/model"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	MsgEndBeforeStart = "End time must be after start time"
	MsgNoSuchTime     = "This time does not exist in your time zone"
)

// Input is the single form-state struct passed from the calendar view
// through Validate and Convert.
type Input struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	StartDate   string            `json:"startDate" validate:"required,datetime=2006-01-02"`
	StartTime   string            `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndDate     string            `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	EndTime     string            `json:"endTime" validate:"omitempty,datetime=15:04"`
	AllDay      bool              `json:"allDay"`
	Recurrence  model.Recurrence  `json:"recurrence" validate:"omitempty,oneof=none daily weekly monthly yearly"`
	Attendees   []string          `json:"attendees" validate:"dive,email"`
	File        *model.Attachment `json:"-"`
}

// Editing reports whether the form edits an existing event.
func (in Input) Editing() bool {
	return in.ID != ""
}

// FieldErrors maps a form field (its JSON name) to a message for the user.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid event form: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate trims the text fields and checks formats and the temporal
// ordering. Timed fields are read in loc, the zone Convert will use, and
// wall-clock times skipped by a DST change are rejected. It returns the
// cleaned input, or FieldErrors.
func Validate(in Input, loc *time.Location) (Input, error) {
	in = trimmed(in)
	errs := FieldErrors{}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return in, fmt.Errorf("validate form: %w", err)
		}
		for _, fe := range verrs {
			field := fe.Field()
			if i := strings.IndexByte(field, '['); i >= 0 {
				field = field[:i]
			}
			if _, seen := errs[field]; !seen {
				errs[field] = message(field, fe.Tag())
			}
		}
	}

	if in.AllDay {
		if in.StartTime != "" {
			errs.add("startTime", "All-day events have no start time")
		}
		if in.EndTime != "" {
			errs.add("endTime", "All-day events have no end time")
		}
	} else {
		if in.StartTime == "" {
			errs.add("startTime", "Start time is required")
		}
		if in.EndDate != "" && in.EndTime == "" {
			errs.add("endTime", "End time is required with an end date")
		}
		if in.EndTime != "" && in.EndDate == "" {
			errs.add("endDate", "End date is required with an end time")
		}
	}

	if len(errs) > 0 {
		return in, errs
	}

	if loc == nil || in.StartTime == "" {
		loc = time.UTC
	}
	start, end, err := interval(in, loc)
	if err != nil {
		return in, fmt.Errorf("validate form: %w", err)
	}
	if !in.AllDay {
		if !onClock(start, in.StartDate, in.StartTime) {
			errs.add("startTime", MsgNoSuchTime)
		}
		if end != nil && !onClock(*end, in.EndDate, in.EndTime) {
			errs.add("endTime", MsgNoSuchTime)
		}
		if len(errs) > 0 {
			return in, errs
		}
	}
	if end != nil && !end.After(start) {
		if in.AllDay {
			errs.add("endDate", MsgEndBeforeStart)
		} else {
			errs.add("endTime", MsgEndBeforeStart)
		}
		return in, errs
	}
	return in, nil
}

// onClock reports whether t still reads as the wall-clock date and time it
// was parsed from. Times inside a spring-forward gap do not.
func onClock(t time.Time, date, clock string) bool {
	return t.Format(DateLayout+" "+TimeLayout) == date+" "+clock
}

func (fe FieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

func trimmed(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndDate = strings.TrimSpace(in.EndDate)
	in.EndTime = strings.TrimSpace(in.EndTime)
	if len(in.Attendees) > 0 {
		att := make([]string, 0, len(in.Attendees))
		for _, a := range in.Attendees {
			if a = strings.TrimSpace(a); a != "" {
				att = append(att, a)
			}
		}
		in.Attendees = att
	}
	return in
}

func message(field, tag string) string {
	switch field {
	case "title":
		return "Title is required"
	case "startDate":
		if tag == "required" {
			return "Start date is required"
		}
		return "Start date must be a valid date (YYYY-MM-DD)"
	case "startTime":
		return "Start time must be a valid time (HH:MM)"
	case "endDate":
		return "End date must be a valid date (YYYY-MM-DD)"
	case "endTime":
		return "End time must be a valid time (HH:MM)"
	case "recurrence":
		return "Recurrence must be none, daily, weekly, monthly, or yearly"
	case "attendees":
		return "Attendees must be valid email addresses"
	}
	return "Invalid value"
}
