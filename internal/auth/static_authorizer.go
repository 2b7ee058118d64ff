package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
)

// LocalDevAPIKey is accepted for LocalDevUserID when no tokens are configured.
const (
	LocalDevAPIKey = "sk_local_sidebar_dev_key"
	LocalDevUserID = "sidebar-dev"
)

// StaticAuthorizer resolves bearer tokens from a fixed token -> user map,
// typically SIDEBAR_API_TOKENS.
type StaticAuthorizer struct {
	tokens []tokenEntry
}

type tokenEntry struct {
	key    []byte
	userID string
}

// NewStaticAuthorizer builds an authorizer over tokens. Entries with an empty
// token or user are skipped. An empty map falls back to the local dev key.
func NewStaticAuthorizer(tokens map[string]string) *StaticAuthorizer {
	if len(tokens) == 0 {
		tokens = map[string]string{LocalDevAPIKey: LocalDevUserID}
	}
	a := &StaticAuthorizer{}
	for k, u := range tokens {
		if k == "" || u == "" {
			continue
		}
		a.tokens = append(a.tokens, tokenEntry{key: []byte(k), userID: u})
	}
	sort.Slice(a.tokens, func(i, j int) bool { return a.tokens[i].userID < a.tokens[j].userID })
	return a
}

// Authorize compares apiKey against every known token in constant time.
func (a *StaticAuthorizer) Authorize(_ context.Context, apiKey string) (*ActorInfo, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var found *tokenEntry
	for i := range a.tokens {
		if subtle.ConstantTimeCompare(a.tokens[i].key, []byte(apiKey)) == 1 {
			found = &a.tokens[i]
		}
	}
	if found == nil {
		return nil, ErrInvalidAPIKey
	}
	return &ActorInfo{UserID: found.userID, KeyName: fmt.Sprintf("static:%s", found.userID)}, nil
}

// Users lists the user ids that have a token.
func (a *StaticAuthorizer) Users() []string {
	out := make([]string, 0, len(a.tokens))
	for _, t := range a.tokens {
		out = append(out, t.userID)
	}
	return out
}
