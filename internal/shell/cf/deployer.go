package cf

import (
	"context"
	"log/slog"

	"github.com/cloudpilot/cfdeploy/internal/core/manifest"
	"github.com/cloudpilot/cfdeploy/internal/core/push"
	"github.com/cloudpilot/cfdeploy/internal/core/retry"
)

// =============================================================================
// Deployment History
// =============================================================================

// Deployment history states, in lifecycle order. A crash between states
// leaves the application where it was; re-running the deploy is safe because
// push updates in place and duplicate bind/set-env calls are platform no-ops.
const (
	StatePushed     = "pushed"
	StateConfigured = "configured"
	StateStarted    = "started"
	StateFailed     = "failed"
)

// DeployRecorder receives deployment history events. Recording is audit-only:
// the deployer never reads history back, and recorder failures never fail a
// deployment.
type DeployRecorder interface {
	DeploymentStarted(ctx context.Context, appName, artifactPath string) (int64, error)
	DeploymentState(ctx context.Context, id int64, state, detail string) error
}

// =============================================================================
// Deployer
// =============================================================================

// Deployer runs manifest-driven deployments against the platform.
//
// All operations are synchronous and blocking. Concurrent deploys of
// different applications are safe; concurrent deploys of the same
// application name race on bind/env/start ordering and must be serialized
// by the caller.
type Deployer struct {
	client  Client
	policy  *retry.Policy
	history DeployRecorder // optional
	tokens  manifest.TokenGenerator
	logger  *slog.Logger
}

// NewDeployer creates a new deployer. policy may be nil for single attempts;
// history may be nil to disable deployment recording.
func NewDeployer(client Client, policy *retry.Policy, history DeployRecorder, logger *slog.Logger) *Deployer {
	if policy == nil {
		policy = retry.None()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		client:  client,
		policy:  policy,
		history: history,
		tokens:  manifest.RandomToken,
		logger:  logger,
	}
}

// =============================================================================
// Deployment Orchestration
// =============================================================================

// DeployManifest parses a deployment manifest and deploys every application
// it declares. A parse failure aborts before any platform call is made.
func (d *Deployer) DeployManifest(ctx context.Context, manifestPath string) error {
	apps, err := manifest.Parse(manifestPath, d.tokens)
	if err != nil {
		return err
	}

	d.logger.Info("deploying manifest", "manifest", manifestPath, "applications", len(apps))

	for artifactPath, app := range apps {
		if err := d.Deploy(ctx, artifactPath, app); err != nil {
			return err
		}
	}
	return nil
}

// Deploy pushes one application and, when the push was deferred, binds its
// services, sets its environment variables, and starts it - in that order.
// The first failure aborts the remaining steps; nothing is rolled back.
func (d *Deployer) Deploy(ctx context.Context, artifactPath string, app manifest.Application) error {
	req := push.NewRequest(artifactPath, app)

	d.logger.Info("pushing application",
		"app", req.Name,
		"artifact", artifactPath,
		"deferred_start", req.NoStart,
	)

	recID := d.recordStarted(ctx, req.Name, artifactPath)

	if err := d.policy.Do(ctx, "push "+req.Name, func() error {
		return d.client.Push(ctx, req)
	}); err != nil {
		d.recordState(ctx, recID, StateFailed, err.Error())
		return err
	}
	d.recordState(ctx, recID, StatePushed, "")

	if !req.NoStart {
		// Nothing to configure - the push starts the application itself.
		d.recordState(ctx, recID, StateStarted, "")
		d.logger.Info("application pushed and started", "app", req.Name)
		return nil
	}

	for _, svc := range app.Services {
		if err := d.policy.Do(ctx, "bind "+svc, func() error {
			return d.client.BindService(ctx, req.Name, svc)
		}); err != nil {
			d.recordState(ctx, recID, StateFailed, err.Error())
			return err
		}
		d.logger.Debug("bound service", "app", req.Name, "service_instance", svc)
	}

	for _, ev := range app.Env {
		if err := d.policy.Do(ctx, "set env "+ev.Name, func() error {
			return d.client.SetEnv(ctx, req.Name, ev.Name, ev.Value)
		}); err != nil {
			d.recordState(ctx, recID, StateFailed, err.Error())
			return err
		}
		d.logger.Debug("set environment variable", "app", req.Name, "name", ev.Name)
	}
	d.recordState(ctx, recID, StateConfigured, "")

	if err := d.policy.Do(ctx, "start "+req.Name, func() error {
		return d.client.Start(ctx, req.Name)
	}); err != nil {
		d.recordState(ctx, recID, StateFailed, err.Error())
		return err
	}
	d.recordState(ctx, recID, StateStarted, "")

	d.logger.Info("application started", "app", req.Name)
	return nil
}

// =============================================================================
// Marketplace Helpers
// =============================================================================

// ServiceExists reports whether exactly one service instance with the given
// name exists. Duplicate names count as not-exists, matching the single-match
// contract of the lookup.
func (d *Deployer) ServiceExists(ctx context.Context, instanceName string) (bool, error) {
	var instances []ServiceInstance
	if err := d.policy.Do(ctx, "list service instances", func() error {
		var err error
		instances, err = d.client.ListServiceInstances(ctx)
		return err
	}); err != nil {
		return false, err
	}

	matches := 0
	for _, si := range instances {
		if si.Name == instanceName {
			matches++
		}
	}
	return matches == 1, nil
}

// CreateService provisions a marketplace service instance.
func (d *Deployer) CreateService(ctx context.Context, service, plan, instanceName string) error {
	d.logger.Info("creating service instance", "service", service, "plan", plan, "instance", instanceName)
	return d.policy.Do(ctx, "create service "+instanceName, func() error {
		return d.client.CreateServiceInstance(ctx, service, plan, instanceName)
	})
}

// CreateServiceIfMissing provisions the instance only when it does not
// already exist. The check and the create are separate platform calls, so a
// concurrent creator can still win the race between them; callers needing
// that guarantee must serialize externally.
func (d *Deployer) CreateServiceIfMissing(ctx context.Context, service, plan, instanceName string) error {
	exists, err := d.ServiceExists(ctx, instanceName)
	if err != nil {
		return err
	}
	if exists {
		d.logger.Debug("service instance already exists", "instance", instanceName)
		return nil
	}
	return d.CreateService(ctx, service, plan, instanceName)
}

// DestroyService deletes a service instance and reports whether it is gone
// afterwards.
func (d *Deployer) DestroyService(ctx context.Context, instanceName string) (bool, error) {
	if err := d.policy.Do(ctx, "delete service "+instanceName, func() error {
		return d.client.DeleteServiceInstance(ctx, instanceName)
	}); err != nil {
		return false, err
	}

	exists, err := d.ServiceExists(ctx, instanceName)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// =============================================================================
// Route Helpers
// =============================================================================

// DeleteOrphanedRoutes removes routes that no application is bound to.
func (d *Deployer) DeleteOrphanedRoutes(ctx context.Context) error {
	d.logger.Info("deleting orphaned routes")
	return d.policy.Do(ctx, "delete orphaned routes", func() error {
		return d.client.DeleteOrphanedRoutes(ctx)
	})
}

// ApplicationURL returns the first URL bound to an application, prefixed
// with http or https.
func (d *Deployer) ApplicationURL(ctx context.Context, appName string, https bool) (string, error) {
	var app *Application
	if err := d.policy.Do(ctx, "get application "+appName, func() error {
		var err error
		app, err = d.client.GetApplication(ctx, appName)
		return err
	}); err != nil {
		return "", err
	}

	if len(app.URLs) == 0 {
		return "", NewPlatformError("ApplicationURL", "app", appName, "no URLs bound", ErrNoRoutes)
	}

	scheme := "http"
	if https {
		scheme = "https"
	}
	return scheme + "://" + app.URLs[0], nil
}

// =============================================================================
// History Recording
// =============================================================================

func (d *Deployer) recordStarted(ctx context.Context, appName, artifactPath string) int64 {
	if d.history == nil {
		return 0
	}
	id, err := d.history.DeploymentStarted(ctx, appName, artifactPath)
	if err != nil {
		d.logger.Warn("failed to record deployment", "app", appName, "error", err)
		return 0
	}
	return id
}

func (d *Deployer) recordState(ctx context.Context, id int64, state, detail string) {
	if d.history == nil || id == 0 {
		return
	}
	if err := d.history.DeploymentState(ctx, id, state, detail); err != nil {
		d.logger.Warn("failed to record deployment state", "state", state, "error", err)
	}
}
