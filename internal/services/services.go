package services

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenProvider hands out access tokens for API calls. [Session] is the production implementation.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Pacer delays the caller between API calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Fetcher retrieves a station feed.
type Fetcher interface {
	Get(ctx context.Context, url string) (*APIResponse, error)
}
