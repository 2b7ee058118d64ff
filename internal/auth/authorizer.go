package auth

import (
	"context"
)

// ActorInfo identifies the user behind an API key.
type ActorInfo struct {
	UserID  string `json:"user_id"`
	KeyName string `json:"key_name"`
}

// Authorizer validates an API key and resolves the user it acts for.
type Authorizer interface {
	// Authorize returns ActorInfo if apiKey is known, ErrInvalidAPIKey otherwise.
	Authorize(ctx context.Context, apiKey string) (*ActorInfo, error)
}
