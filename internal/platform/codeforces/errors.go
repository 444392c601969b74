package codeforces

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("codeforces api key and secret are required")

	// ErrTransport covers timeouts, resets and unreadable responses.
	ErrTransport = errors.New("codeforces transport error")
	// ErrRateLimited is returned for HTTP 429 and "Call limit exceeded".
	ErrRateLimited = errors.New("codeforces rate limit exceeded")
	// ErrAPIUnavailable is returned once every retry attempt has failed.
	ErrAPIUnavailable = errors.New("codeforces api unavailable")

	ErrPlatformRejected = errors.New("codeforces rejected the request")
	ErrHandleNotFound   = fmt.Errorf("handle not found: %w", ErrPlatformRejected)
	ErrInvalidParameter = fmt.Errorf("invalid parameter: %w", ErrPlatformRejected)
)

// APIError carries the comment of a FAILED envelope.
type APIError struct {
	Method  string
	Comment string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codeforces %s: %s", e.Method, e.Comment)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// IsRetryable reports whether err is a transport-level failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimited)
}
