package ai

import "errors"

// ErrRateLimited indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrRateLimited = errors.New("ai rate limited")

// ErrBadRequest indicates the provider rejected the request itself; retrying will not help.
var ErrBadRequest = errors.New("ai request rejected")

// ErrUnavailable covers network failures, provider 5xx and empty responses.
var ErrUnavailable = errors.New("ai provider unavailable")

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
