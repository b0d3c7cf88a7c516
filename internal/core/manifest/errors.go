// Package manifest contains the parser for application deployment manifests.
// Parsing is pure apart from reading the manifest file itself.
package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Filesystem errors
	ErrManifestRead = errors.New("manifest could not be read")

	// Structure errors
	ErrInvalidManifest = errors.New("invalid manifest structure")
	ErrNoApplications  = errors.New("manifest must define at least one application")

	// Field errors
	ErrInvalidField = errors.New("invalid field value")
)

// ManifestError wraps errors with context about where parsing failed.
type ManifestError struct {
	Field   string // e.g., "applications[0].services"
	Message string
	Err     error
}

func (e *ManifestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// NewManifestError creates a new ManifestError.
func NewManifestError(field, message string, err error) *ManifestError {
	return &ManifestError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
