package gcal

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/dukerupert/planwise/internal/auth"
)

// Profile is the Google account behind an access token.
type Profile struct {
	Email    string
	Name     string
	Verified bool
}

// UserinfoFactory builds a userinfo client for one access token.
type UserinfoFactory func(ctx context.Context, accessToken string) (*googleoauth2.Service, error)

// NewUserinfoService is the production UserinfoFactory.
func NewUserinfoService(ctx context.Context, accessToken string) (*googleoauth2.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return googleoauth2.NewService(ctx, option.WithTokenSource(ts))
}

type ProfileFetcher struct {
	newService UserinfoFactory
}

func NewProfileFetcher(factory UserinfoFactory) *ProfileFetcher {
	if factory == nil {
		factory = NewUserinfoService
	}
	return &ProfileFetcher{newService: factory}
}

// Profile resolves accessToken to the account's email and display name.
func (f *ProfileFetcher) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("fetch profile: %w", auth.ErrUnauthorized)
	}
	svc, err := f.newService(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, mapError("fetch profile", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("fetch profile: no email granted: %w", auth.ErrUnauthorized)
	}
	return &Profile{
		Email:    info.Email,
		Name:     info.Name,
		Verified: info.VerifiedEmail != nil && *info.VerifiedEmail,
	}, nil
}
