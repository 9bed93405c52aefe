// Package gcal serves event collections and the task table from the
// caller's Google Calendar, authenticated with the provider access token
// carried on the request.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
)

const (
	PrimaryCalendar = "primary"
	maxTasks        = 100
)

// ServiceFactory builds a calendar client for one access token.
type ServiceFactory func(ctx context.Context, accessToken string) (*calendar.Service, error)

// NewService is the production ServiceFactory.
func NewService(ctx context.Context, accessToken string) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return calendar.NewService(ctx, option.WithTokenSource(ts))
}

type Provider struct {
	newService ServiceFactory
	calendarID string
	now        func() time.Time
}

func NewProvider(factory ServiceFactory) *Provider {
	if factory == nil {
		factory = NewService
	}
	return &Provider{newService: factory, calendarID: PrimaryCalendar, now: time.Now}
}

func (p *Provider) service(ctx context.Context) (*calendar.Service, error) {
	token := auth.AccessToken(ctx)
	if token == "" {
		return nil, fmt.Errorf("%w: missing provider access token", auth.ErrUnauthorized)
	}
	svc, err := p.newService(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, nil
}

// List returns the caller's events in creation order. The calendar is
// chosen by the access token, so userKey only scopes the request.
func (p *Provider) List(ctx context.Context, userKey string) ([]model.Event, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}

	events := []model.Event{}
	err = svc.Events.List(p.calendarID).ShowDeleted(false).MaxResults(250).Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			ev, err := fromGoogle(item)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, mapError("list events", err)
	}
	sortByCreated(events)
	return events, nil
}

// Create inserts ev. Google assigns the id; caller-supplied ids are not
// forwarded because the provider restricts their alphabet.
func (p *Provider) Create(ctx context.Context, userKey string, ev model.Event) (*model.Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalid, err)
	}
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}
	created, err := svc.Events.Insert(p.calendarID, toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return nil, mapError("insert event", err)
	}
	out, err := fromGoogle(created)
	if err != nil {
		return nil, err
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = p.now().UTC()
	}
	return &out, nil
}

func (p *Provider) Update(ctx context.Context, userKey, eventID string, patch model.EventPatch) (*model.Event, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}
	current, err := svc.Events.Get(p.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, mapError("get event", err)
	}
	if current.Status == "cancelled" {
		return nil, store.ErrNotFound
	}
	ev, err := fromGoogle(current)
	if err != nil {
		return nil, err
	}
	patch.Apply(&ev)
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalid, err)
	}
	ev.Normalize()

	saved, err := svc.Events.Update(p.calendarID, eventID, toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return nil, mapError("update event", err)
	}
	out, err := fromGoogle(saved)
	if err != nil {
		return nil, err
	}
	if out.UpdatedAt == nil {
		now := p.now().UTC()
		out.UpdatedAt = &now
	}
	return &out, nil
}

func (p *Provider) Delete(ctx context.Context, userKey, eventID string) error {
	svc, err := p.service(ctx)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(p.calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapError("delete event", err)
	}
	return nil
}

// Tasks lists up to 100 upcoming single events ordered by start time.
func (p *Provider) Tasks(ctx context.Context) ([]model.Task, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}
	res, err := svc.Events.List(p.calendarID).
		TimeMin(p.now().UTC().Format(time.RFC3339)).
		MaxResults(maxTasks).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("list tasks", err)
	}
	tasks := make([]model.Task, 0, len(res.Items))
	for _, item := range res.Items {
		tasks = append(tasks, toTask(item))
	}
	return tasks, nil
}

func mapError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, auth.ErrUnauthorized)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, auth.ErrForbidden)
		case http.StatusConflict:
			return fmt.Errorf("%s: %w", op, store.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
