// Package planner proposes a time slot for an event from its title and an
// uploaded document.
package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/planwise/internal/model"
)

// Request is what the form hands to a planner.
type Request struct {
	Title       string
	Description string
	Location    string
	File        *model.Attachment
}

// Proposal is a suggested interval. Title and Description are set only
// when the planner revised them.
type Proposal struct {
	Start       time.Time
	End         time.Time
	Title       string
	Description string
}

// Result is either Success or Failure.
type Result interface {
	isResult()
}

type Success struct {
	Proposal Proposal
}

type Failure struct {
	Reason string
}

func (Success) isResult() {}
func (Failure) isResult() {}

const (
	ReasonNoFile      = "Attach a file so the assistant can schedule this event"
	ReasonNoTitle     = "Enter a title before asking the assistant"
	ReasonUnparseable = "The assistant did not return a usable time slot"
	ReasonUnavailable = "The assistant is unavailable, try again later"
)

type message struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

var layouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseMessage reads the planner's reply. Markdown code fences and text
// around the JSON object are tolerated; end must follow start.
func ParseMessage(msg string) Result {
	msg = strings.TrimSpace(msg)
	i, j := strings.IndexByte(msg, '{'), strings.LastIndexByte(msg, '}')
	if i < 0 || j < i {
		return Failure{Reason: ReasonUnparseable}
	}

	var m message
	if err := json.Unmarshal([]byte(msg[i:j+1]), &m); err != nil {
		return Failure{Reason: ReasonUnparseable}
	}
	start, err := parseTime(m.Start)
	if err != nil {
		return Failure{Reason: ReasonUnparseable}
	}
	end, err := parseTime(m.End)
	if err != nil || !end.After(start) {
		return Failure{Reason: ReasonUnparseable}
	}
	return Success{Proposal: Proposal{
		Start:       start,
		End:         end,
		Title:       strings.TrimSpace(m.Title),
		Description: strings.TrimSpace(m.Description),
	}}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
