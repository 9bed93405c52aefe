// Package calview holds the calendar view's state machine: the rendered
// event set, the open form, and the transitions driven by user actions and
// store responses.
package calview

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/eventform"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/planner"
	"github.com/dukerupert/planwise/internal/recurrence"
	"github.com/dukerupert/planwise/internal/store"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
	FormOpen
	Saving
	Error
)

var stateNames = [...]string{"idle", "loading", "ready", "form_open", "saving", "error"}

func (s State) String() string { return stateNames[s] }

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// Session is what the identity collaborator hands the view.
type Session struct {
	Authenticated bool
	Email         string
	Name          string
	AccessToken   string
}

// Planner proposes an interval for the open form.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) planner.Result
}

const NoticeRemoved = "This event was already removed"

// View is a snapshot of the controller for rendering.
type View struct {
	State       State
	Mode        Mode
	Events      []model.Event
	Form        eventform.Input
	FieldErrors eventform.FieldErrors
	Banner      string
	Notice      string
	PlanMessage string
	Planning    bool
	Err         error
}

type Option func(*Controller)

func WithPlanner(p Planner) Option {
	return func(c *Controller) { c.planner = p }
}

// WithLocation sets the zone forms are rendered and parsed in.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns the rendered event set. Its mutex is never held across
// a store or planner call.
type Controller struct {
	source  store.Source
	planner Planner
	loc     *time.Location
	logger  *slog.Logger

	mu          sync.Mutex
	session     Session
	userKey     string
	state       State
	mode        Mode
	events      []model.Event
	form        eventform.Input
	fieldErrors eventform.FieldErrors
	banner      string
	notice      string
	planMessage string
	planning    bool
	err         error
	// saveSeq numbers submits; only the latest one may move the state.
	saveSeq uint64
}

func New(source store.Source, opts ...Option) *Controller {
	c := &Controller{source: source, loc: time.UTC, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	c.logger = c.logger.With("component", "calview")
	return c
}

// View returns a copy of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:       c.state,
		Mode:        c.mode,
		Events:      make([]model.Event, len(c.events)),
		Form:        c.form,
		Banner:      c.banner,
		Notice:      c.notice,
		PlanMessage: c.planMessage,
		Planning:    c.planning,
		Err:         c.err,
	}
	for i, ev := range c.events {
		v.Events[i] = ev.Clone()
	}
	if len(c.fieldErrors) > 0 {
		v.FieldErrors = make(eventform.FieldErrors, len(c.fieldErrors))
		for k, msg := range c.fieldErrors {
			v.FieldErrors[k] = msg
		}
	}
	return v
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, c.state)
}

// ioContext attaches the session identity so credential-scoped sources
// can authenticate.
func (c *Controller) ioContext(ctx context.Context, s Session) context.Context {
	return auth.WithIdentity(ctx, auth.Identity{Email: s.Email, Name: s.Name, AccessToken: s.AccessToken})
}

// Mount loads the user's events. An unauthenticated session ends in Error.
func (c *Controller) Mount(ctx context.Context, s Session) error {
	c.mu.Lock()
	if c.state != Idle && c.state != Error {
		defer c.mu.Unlock()
		return c.invalid("mount")
	}
	if !s.Authenticated || s.Email == "" {
		c.state, c.err = Error, auth.ErrUnauthorized
		c.mu.Unlock()
		return auth.ErrUnauthorized
	}
	c.session, c.userKey = s, auth.UserKey(s.Email)
	c.state, c.err = Loading, nil
	key := c.userKey
	c.mu.Unlock()

	events, err := c.source.List(c.ioContext(ctx, s), key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn("load events", "user_key", key, "error", err)
		c.state, c.err = Error, err
		return err
	}
	c.events = events
	c.state = Ready
	return nil
}

// Refresh replaces the rendered set with a fresh list. The state is kept
// unless the session turns out to be invalid.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Ready, FormOpen, Saving:
	default:
		defer c.mu.Unlock()
		return c.invalid("refresh")
	}
	s, key := c.session, c.userKey
	c.mu.Unlock()

	events, err := c.source.List(c.ioContext(ctx, s), key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail("refresh", err)
		return err
	}
	c.events = events
	return nil
}

// SelectRange opens a create form for a selected slot.
func (c *Controller) SelectRange(start, end time.Time, allDay bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready {
		return c.invalid("select range")
	}
	ev := model.Event{Start: start, AllDay: allDay}
	if end.After(start) {
		ev.End = &end
	}
	c.openForm(ModeCreate, eventform.ToForm(ev, c.loc))
	return nil
}

// ClickEvent opens an edit form for a rendered event.
func (c *Controller) ClickEvent(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready {
		return c.invalid("open event")
	}
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	c.openForm(ModeEdit, eventform.ToForm(c.events[i], c.loc))
	return nil
}

func (c *Controller) openForm(mode Mode, in eventform.Input) {
	c.state, c.mode, c.form = FormOpen, mode, in
	c.fieldErrors, c.banner, c.notice, c.planMessage = nil, "", "", ""
}

// UpdateForm edits the open form in place.
func (c *Controller) UpdateForm(edit func(*eventform.Input)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != FormOpen {
		return c.invalid("edit form")
	}
	id := c.form.ID
	edit(&c.form)
	c.form.ID = id
	return nil
}

// Submit validates, converts and saves the form. Validation failures keep
// the form open with field errors and never reach the store.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state != FormOpen {
		defer c.mu.Unlock()
		return c.invalid("submit")
	}
	in, err := eventform.Validate(c.form, c.loc)
	if err != nil {
		if fe, ok := err.(eventform.FieldErrors); ok {
			c.fieldErrors = fe
		}
		c.mu.Unlock()
		return err
	}
	ev, err := eventform.Convert(in, c.loc)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.form, c.fieldErrors, c.banner = in, nil, ""
	c.state = Saving
	c.saveSeq++
	seq := c.saveSeq
	mode, s, key := c.mode, c.session, c.userKey
	c.mu.Unlock()

	ioCtx := c.ioContext(ctx, s)
	var saved *model.Event
	if mode == ModeEdit {
		saved, err = c.source.Update(ioCtx, key, in.ID, model.PatchFrom(ev))
	} else {
		saved, err = c.source.Create(ioCtx, key, ev)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stillSaving := c.state == Saving && c.saveSeq == seq

	if err == nil {
		c.upsert(*saved)
		if stillSaving {
			c.state, c.form = Ready, eventform.Input{}
		}
		return nil
	}

	c.logger.Warn("save event", "mode", mode, "user_key", key, "error", err)
	switch KindOf(err) {
	case KindAuth:
		c.state, c.err = Error, err
	case KindNotFound:
		if mode == ModeEdit {
			c.remove(in.ID)
			if stillSaving {
				c.state, c.form = Ready, eventform.Input{}
				c.notice = NoticeRemoved
			}
			break
		}
		fallthrough
	default:
		if stillSaving {
			c.state = FormOpen
			c.banner = bannerFor(verb(mode), err)
		}
	}
	return err
}

// Cancel closes the form without I/O. A save in flight still lands in the
// rendered set when it completes.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != FormOpen && c.state != Saving {
		return c.invalid("cancel")
	}
	c.state, c.form = Ready, eventform.Input{}
	c.fieldErrors, c.banner, c.planMessage = nil, "", ""
	return nil
}

// Plan asks the planner for an interval and merges a success into the
// form. The state stays FormOpen either way.
func (c *Controller) Plan(ctx context.Context) error {
	c.mu.Lock()
	if c.state != FormOpen {
		defer c.mu.Unlock()
		return c.invalid("plan")
	}
	if c.planner == nil {
		c.mu.Unlock()
		return ErrNoPlanner
	}
	req := planner.Request{
		Title:       c.form.Title,
		Description: c.form.Description,
		Location:    c.form.Location,
		File:        c.form.File,
	}
	c.planning, c.planMessage = true, ""
	s := c.session
	c.mu.Unlock()

	res := c.planner.Plan(c.ioContext(ctx, s), req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.planning = false
	if c.state != FormOpen {
		return nil
	}
	switch r := res.(type) {
	case planner.Success:
		p := r.Proposal
		c.form.SetInterval(p.Start, p.End, c.loc)
		if p.Title != "" {
			c.form.Title = p.Title
		}
		if p.Description != "" {
			c.form.Description = p.Description
		}
		delete(c.fieldErrors, "endTime")
		delete(c.fieldErrors, "endDate")
		return nil
	case planner.Failure:
		c.planMessage = r.Reason
		return &PlanningError{Reason: r.Reason}
	}
	c.planMessage = planner.ReasonUnavailable
	return &PlanningError{Reason: planner.ReasonUnavailable}
}

// Delete removes an event. A missing event counts as already deleted.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state != Ready && c.state != FormOpen {
		defer c.mu.Unlock()
		return c.invalid("delete")
	}
	s, key := c.session, c.userKey
	c.mu.Unlock()

	err := c.source.Delete(c.ioContext(ctx, s), key, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil && KindOf(err) != KindNotFound {
		c.fail("delete", err)
		return err
	}
	c.remove(id)
	if c.state == FormOpen && c.form.ID == id {
		c.state, c.form = Ready, eventform.Input{}
	}
	return nil
}

// Occurrences expands the rendered set over [from, to), ordered by start.
func (c *Controller) Occurrences(from, to time.Time) ([]recurrence.Occurrence, error) {
	c.mu.Lock()
	events := make([]model.Event, len(c.events))
	copy(events, c.events)
	c.mu.Unlock()

	var out []recurrence.Occurrence
	for _, ev := range events {
		occ, err := recurrence.Expand(ev, from, to)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", ev.ID, err)
		}
		out = append(out, occ...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (c *Controller) DismissBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banner, c.notice = "", ""
}

// fail records a failed background operation; callers hold mu.
func (c *Controller) fail(op string, err error) {
	c.logger.Warn(op, "user_key", c.userKey, "error", err)
	if KindOf(err) == KindAuth {
		c.state, c.err = Error, err
		return
	}
	c.banner = bannerFor(op, err)
}

func (c *Controller) indexOf(id string) int {
	for i, ev := range c.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) upsert(ev model.Event) {
	if i := c.indexOf(ev.ID); i >= 0 {
		c.events[i] = ev
		return
	}
	c.events = append(c.events, ev)
}

func (c *Controller) remove(id string) {
	if i := c.indexOf(id); i >= 0 {
		c.events = append(c.events[:i], c.events[i+1:]...)
	}
}

func verb(m Mode) string {
	if m == ModeEdit {
		return "update"
	}
	return "create"
}
