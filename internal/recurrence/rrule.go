// Package recurrence maps the event recurrence tags to RFC 5545 rules and
// expands recurring events into concrete occurrences.
package recurrence

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/planwise/internal/model"
)

var freqByTag = map[model.Recurrence]rrule.Frequency{
	model.RecurrenceDaily:   rrule.DAILY,
	model.RecurrenceWeekly:  rrule.WEEKLY,
	model.RecurrenceMonthly: rrule.MONTHLY,
	model.RecurrenceYearly:  rrule.YEARLY,
}

// RuleFor returns the RRULE value (without the "RRULE:" prefix) for a tag,
// or "" when the tag does not repeat.
func RuleFor(tag model.Recurrence) string {
	if _, ok := freqByTag[tag]; !ok {
		return ""
	}
	return "FREQ=" + strings.ToUpper(string(tag))
}

// TagFor maps an RRULE string back to the nearest recurrence tag. Rules with
// an interval other than one, or an unsupported frequency, come back as none.
func TagFor(rule string) (model.Recurrence, error) {
	rule = strings.TrimSpace(strings.TrimPrefix(rule, "RRULE:"))
	if rule == "" {
		return model.RecurrenceNone, nil
	}
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return model.RecurrenceNone, fmt.Errorf("parse rrule %q: %w", rule, err)
	}
	if opt.Interval > 1 {
		return model.RecurrenceNone, nil
	}
	for tag, freq := range freqByTag {
		if opt.Freq == freq {
			return tag, nil
		}
	}
	return model.RecurrenceNone, nil
}
