// Package eventclient talks to the event store HTTP surface on behalf of
// the calendar view.
package eventclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
)

// TransportError is any failure that is not one of the store or auth
// sentinels: network errors, unexpected statuses, undecodable bodies.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Config holds the client settings.
type Config struct {
	BaseURL string
	// Token is the session token sent as a bearer credential.
	Token string
	// ProviderToken is forwarded for the Google-backed store.
	ProviderToken string
	Timeout       time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) eventsURL(userKey string, parts ...string) string {
	u := c.cfg.BaseURL + "/events/" + url.PathEscape(userKey)
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (c *Client) List(ctx context.Context, userKey string) ([]model.Event, error) {
	var events []model.Event
	if err := c.do(ctx, "list events", http.MethodGet, c.eventsURL(userKey), nil, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

func (c *Client) Create(ctx context.Context, userKey string, ev model.Event) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, "create event", http.MethodPost, c.eventsURL(userKey), ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, userKey, eventID string, patch model.EventPatch) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, "update event", http.MethodPut, c.eventsURL(userKey, eventID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, userKey, eventID string) error {
	return c.do(ctx, "delete event", http.MethodDelete, c.eventsURL(userKey, eventID), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.ProviderToken != "" {
		req.Header.Set("X-Provider-Token", c.cfg.ProviderToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = auth.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = auth.ErrForbidden
	case http.StatusNotFound:
		sentinel = store.ErrNotFound
	case http.StatusConflict:
		sentinel = store.ErrConflict
	}
	if sentinel != nil {
		if payload.Error == "" {
			return fmt.Errorf("%s: %w", op, sentinel)
		}
		return fmt.Errorf("%s: %w: %s", op, sentinel, payload.Error)
	}

	te := &TransportError{Op: op, StatusCode: resp.StatusCode, Message: payload.Error}
	if resp.StatusCode == http.StatusBadRequest {
		te.Err = store.ErrInvalid
	}
	return te
}

// IsTransport reports whether err came from the transport layer.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
