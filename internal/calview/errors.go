package calview

import (
	"errors"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/eventclient"
	"github.com/dukerupert/planwise/internal/eventform"
	"github.com/dukerupert/planwise/internal/store"
)

var (
	ErrInvalidState = errors.New("operation not allowed in current state")
	ErrNoPlanner    = errors.New("no planner configured")
)

// PlanningError reports a planner failure. The form is left untouched.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string { return "planning failed: " + e.Reason }

// Kind classifies an error for display.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindConflict
	KindRejected
	KindTransport
	KindPlanning
	KindState
)

var kindNames = map[Kind]string{
	KindNone:       "none",
	KindValidation: "validation",
	KindAuth:       "auth",
	KindNotFound:   "not_found",
	KindConflict:   "conflict",
	KindRejected:   "rejected",
	KindTransport:  "transport",
	KindPlanning:   "planning",
	KindState:      "state",
}

func (k Kind) String() string { return kindNames[k] }

// KindOf maps err onto the view's error taxonomy. Anything unrecognized is
// treated as a transport failure.
func KindOf(err error) Kind {
	var fe eventform.FieldErrors
	var pe *PlanningError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &fe):
		return KindValidation
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrForbidden):
		return KindAuth
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrConflict):
		return KindConflict
	case errors.Is(err, store.ErrInvalid):
		return KindRejected
	case errors.As(err, &pe), errors.Is(err, ErrNoPlanner):
		return KindPlanning
	case errors.Is(err, ErrInvalidState):
		return KindState
	case eventclient.IsTransport(err):
		return KindTransport
	}
	return KindTransport
}

func bannerFor(op string, err error) string {
	switch KindOf(err) {
	case KindConflict:
		return "Could not " + op + " the event: an event with this id already exists"
	case KindRejected:
		return "Could not " + op + " the event: the server rejected it"
	}
	return "Could not " + op + " the event, please try again"
}
