// Package store persists deployment history. History is an audit log: the
// deployer writes lifecycle transitions here and never reads them back to
// make decisions.
package store

import (
	"context"
	"time"
)

// =============================================================================
// Deployment Records
// =============================================================================

// DeploymentRecord is one deploy attempt and its latest known state.
type DeploymentRecord struct {
	ID           int64
	AppName      string
	ArtifactPath string
	State        string // pending, pushed, configured, started, failed
	Detail       string // error text for failed deployments
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for deployment history.
type Store interface {
	// DeploymentStarted records a new deploy attempt and returns its ID.
	DeploymentStarted(ctx context.Context, appName, artifactPath string) (int64, error)

	// DeploymentState updates the state of a recorded deploy attempt.
	DeploymentState(ctx context.Context, id int64, state, detail string) error

	// ListDeployments returns the recorded attempts for an application,
	// most recent first. An empty appName lists all applications.
	ListDeployments(ctx context.Context, appName string) ([]DeploymentRecord, error)

	// Close releases the underlying resources.
	Close() error
}
