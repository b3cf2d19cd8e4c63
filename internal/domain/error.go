package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSessionExpired  = errors.New("session token has expired")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrNotCancellable  = errors.New("job cannot be cancelled")
)

// GatewayError is a failure reported by the job server (non-2xx response).
type GatewayError struct {
	Op         string // submit | status | cancel | list_active
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// Is maps 404 responses onto ErrNotFound, and a 409 on cancel (the job
// already started) onto ErrNotCancellable.
func (e *GatewayError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrNotCancellable:
		return e.Op == "cancel" && e.StatusCode == 409
	default:
		return false
	}
}
