package cf

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrPlatform covers any remote operation failure not mapped below.
	ErrPlatform = errors.New("platform operation failed")

	// ErrNotFound is returned when the platform reports a missing resource.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized is returned on authentication or authorization failures.
	ErrUnauthorized = errors.New("platform rejected credentials")

	// ErrInvalidRequest is returned when the platform rejects the request body.
	ErrInvalidRequest = errors.New("platform rejected request")

	// ErrConnectionFailed is returned when the platform is unreachable.
	ErrConnectionFailed = errors.New("platform connection failed")

	// ErrNoRoutes is returned when an application has no bound URL.
	ErrNoRoutes = errors.New("application has no routes")
)

// PlatformError wraps errors with context about the failed operation.
type PlatformError struct {
	Op       string // Operation that failed (e.g., "BindService")
	Resource string // Resource type (app, service_instance, route)
	Name     string // Resource name if applicable
	Message  string
	Err      error
}

func (e *PlatformError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Resource, e.Name, e.Message)
	}
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Resource, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewPlatformError creates a new PlatformError.
func NewPlatformError(op, resource, name, message string, err error) *PlatformError {
	return &PlatformError{
		Op:       op,
		Resource: resource,
		Name:     name,
		Message:  message,
		Err:      err,
	}
}

// IsRetryable reports whether an error is worth retrying. Definite client
// errors are not; everything else (connection failures, 5xx responses) is.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidRequest):
		return false
	}
	return true
}
