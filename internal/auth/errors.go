package auth

import "errors"

var (
	// ErrMissingAPIKey is returned when the request carries no credentials.
	ErrMissingAPIKey = errors.New("missing Authorization header")

	// ErrMalformedHeader is returned for anything but "Bearer <api_key>".
	ErrMalformedHeader = errors.New("invalid Authorization header format, expected 'Bearer <api_key>'")

	// ErrInvalidAPIKey is returned when the key is not known.
	ErrInvalidAPIKey = errors.New("invalid API key")
)
