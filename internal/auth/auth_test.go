package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    error
	}{
		{"", "", ErrMissingAPIKey},
		{"Bearer abc", "abc", nil},
		{"Basic abc", "", ErrMalformedHeader},
		{"Bearer", "", ErrMalformedHeader},
		{"Bearer a b", "", ErrMalformedHeader},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractAPIKey(r)
		if !errors.Is(err, tt.err) {
			t.Fatalf("%q: err = %v, want %v", tt.header, err, tt.err)
		}
		if got != tt.want {
			t.Fatalf("%q: key = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestStaticAuthorizer(t *testing.T) {
	a := NewStaticAuthorizer(map[string]string{"tok-a": "alice", "tok-b": "bob", "": "nobody"})
	ctx := context.Background()

	actor, err := a.Authorize(ctx, "tok-b")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if actor.UserID != "bob" {
		t.Fatalf("user = %q, want bob", actor.UserID)
	}
	if _, err := a.Authorize(ctx, "tok-c"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("unknown key: %v", err)
	}
	if _, err := a.Authorize(ctx, ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("empty key: %v", err)
	}
	if got := a.Users(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("users = %v", got)
	}
}

func TestStaticAuthorizer_DevFallback(t *testing.T) {
	a := NewStaticAuthorizer(nil)
	actor, err := a.Authorize(context.Background(), LocalDevAPIKey)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if actor.UserID != LocalDevUserID {
		t.Fatalf("user = %q", actor.UserID)
	}
}

func TestActorContext(t *testing.T) {
	if _, ok := ActorFrom(context.Background()); ok {
		t.Fatal("empty context has an actor")
	}
	ctx := WithActor(context.Background(), &ActorInfo{UserID: "u1"})
	a, ok := ActorFrom(ctx)
	if !ok || a.UserID != "u1" {
		t.Fatalf("actor = %+v, %v", a, ok)
	}
}
