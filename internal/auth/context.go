package auth

import (
	"context"
	"strings"
)

type contextKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID      int64
	Email       string
	Name        string
	Provider    string
	TokenID     string
	AccessToken string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Email returns the caller's email, or "" when the context is anonymous.
func Email(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.Email
}

// AccessToken returns the calendar-provider token carried by the request.
func AccessToken(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.AccessToken
}

// UserKey derives the storage partition key from an email: lowercased, with
// every rune outside [a-z0-9] replaced by an underscore.
func UserKey(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	return strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, email)
}
