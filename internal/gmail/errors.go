package gmail

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError indicates a 404 from the API: the message or label is gone.
// Mutations treat it as success, which keeps trash and delete idempotent.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// RateLimitError indicates the API refused a call for quota reasons and the
// client's own backoff ran out of retries.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

// AuthError indicates the credentials were rejected or lack the required
// scope. Not retryable; callers abort.
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("authentication failed (%d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("authentication failed (%d)", e.StatusCode)
}

// APIError is any other non-success response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
