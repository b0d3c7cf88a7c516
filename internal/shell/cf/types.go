// Package cf talks to the target platform's HTTP API and orchestrates
// manifest-driven deployments against it.
package cf

import (
	"context"

	"github.com/cloudpilot/cfdeploy/internal/core/push"
)

// =============================================================================
// Platform Resources
// =============================================================================

// ServiceInstance is a provisioned marketplace service instance.
type ServiceInstance struct {
	Name    string `json:"name"`
	Service string `json:"service,omitempty"`
	Plan    string `json:"plan,omitempty"`
}

// Application is the platform's view of a deployed application.
type Application struct {
	Name      string   `json:"name"`
	State     string   `json:"state,omitempty"`
	Instances int      `json:"instances,omitempty"`
	URLs      []string `json:"urls"`
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the set of platform operations the deployer needs. Every call is
// a blocking round-trip; implementations must be safe for concurrent use.
type Client interface {
	// Push uploads the artifact and creates or updates the application.
	// A push of an existing application with the same name updates in place.
	Push(ctx context.Context, req push.Request) error

	// BindService binds a service instance to an application. Rebinding an
	// already-bound instance is accepted by the platform as a no-op.
	BindService(ctx context.Context, appName, instanceName string) error

	// SetEnv sets one environment variable on an application.
	SetEnv(ctx context.Context, appName, name, value string) error

	// Start starts an application.
	Start(ctx context.Context, appName string) error

	// ListServiceInstances lists all service instances in the target space.
	ListServiceInstances(ctx context.Context) ([]ServiceInstance, error)

	// CreateServiceInstance provisions a marketplace service.
	CreateServiceInstance(ctx context.Context, service, plan, instanceName string) error

	// DeleteServiceInstance deletes a service instance by name.
	DeleteServiceInstance(ctx context.Context, instanceName string) error

	// DeleteOrphanedRoutes removes routes with no application bound to them.
	DeleteOrphanedRoutes(ctx context.Context) error

	// GetApplication fetches an application by name.
	GetApplication(ctx context.Context, appName string) (*Application, error)
}
