package auth

import (
	"context"
	"net/http"
	"strings"
)

// ExtractAPIKey extracts API key from Authorization header
// Returns the API key or error if missing/invalid format
func ExtractAPIKey(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAPIKey
	}

	// Expect "Bearer <api_key>" format
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMalformedHeader
	}

	return parts[1], nil
}

type actorKey struct{}

// WithActor stores the authorized actor on ctx.
func WithActor(ctx context.Context, a *ActorInfo) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored by WithActor, if any.
func ActorFrom(ctx context.Context) (*ActorInfo, bool) {
	a, ok := ctx.Value(actorKey{}).(*ActorInfo)
	return a, ok && a != nil
}
