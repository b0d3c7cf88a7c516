// Package push translates parsed application manifests into platform push
// requests. This is part of the functional core - pure, no I/O.
package push

import (
	"github.com/cloudpilot/cfdeploy/internal/core/manifest"
)

// =============================================================================
// Push Request
// =============================================================================

// Request is the single-use description of one platform push. NoStart marks
// applications that need post-push configuration (service bindings or
// environment variables) before their first start.
type Request struct {
	ArtifactPath string
	Name         string
	Buildpack    string
	MemoryMB     int
	DiskMB       int
	Instances    int
	Host         string
	Domain       string
	NoStart      bool
}

// NewRequest derives the push request for an application and its artifact.
// Only the first host and first domain are used; the platform accepts a
// single route per push.
func NewRequest(artifactPath string, app manifest.Application) Request {
	req := Request{
		ArtifactPath: artifactPath,
		Name:         app.Name,
		Buildpack:    app.Buildpack,
		MemoryMB:     app.MemoryMB,
		DiskMB:       app.DiskMB,
		Instances:    app.Instances,
	}

	if len(app.Hosts) > 0 {
		req.Host = app.Hosts[0]
	}
	if len(app.Domains) > 0 {
		req.Domain = app.Domains[0]
	}

	// Services and environment variables are applied after the push, so the
	// application must not start until they are in place.
	req.NoStart = len(app.Services) > 0 || len(app.Env) > 0

	return req
}
