package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrUnauthorized means no valid session could be resolved.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransient covers network and backend failures that may succeed on retry.
	ErrTransient = errors.New("transient backend failure")
	// ErrStorageUnavailable means the local cache could not be used. Callers
	// degrade to running without a cache.
	ErrStorageUnavailable = errors.New("cache storage unavailable")
)

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
