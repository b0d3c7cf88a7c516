package cf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cloudpilot/cfdeploy/internal/core/push"
)

// =============================================================================
// HTTP Client
// =============================================================================

// ClientConfig holds platform API client configuration.
type ClientConfig struct {
	APIURL  string // Platform API base URL, e.g., "https://api.run.example.com"
	Token   string // Bearer token for authentication
	Timeout time.Duration
}

// HTTPClient implements Client against the platform's v3 REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a new platform API client.
func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// =============================================================================
// Application Operations
// =============================================================================

// pushBody is the JSON payload for creating or updating an application.
type pushBody struct {
	Name      string `json:"name"`
	Buildpack string `json:"buildpack,omitempty"`
	MemoryMB  int    `json:"memory_in_mb,omitempty"`
	DiskMB    int    `json:"disk_in_mb,omitempty"`
	Instances int    `json:"instances,omitempty"`
	Host      string `json:"host,omitempty"`
	Domain    string `json:"domain,omitempty"`
	NoStart   bool   `json:"no_start"`
}

// Push creates or updates the application, then uploads its artifact bits.
// Pushing an existing application with the same name updates it in place.
func (c *HTTPClient) Push(ctx context.Context, req push.Request) error {
	if req.Name == "" {
		return NewPlatformError("Push", "app", "", "application name is required", ErrInvalidRequest)
	}

	body := pushBody{
		Name:      req.Name,
		Buildpack: req.Buildpack,
		MemoryMB:  req.MemoryMB,
		DiskMB:    req.DiskMB,
		Instances: req.Instances,
		Host:      req.Host,
		Domain:    req.Domain,
		NoStart:   req.NoStart,
	}
	if err := c.doJSON(ctx, http.MethodPut, "/v3/apps/"+url.PathEscape(req.Name), body, nil); err != nil {
		return NewPlatformError("Push", "app", req.Name, "create or update failed", err)
	}

	if err := c.uploadBits(ctx, req.Name, req.ArtifactPath); err != nil {
		return NewPlatformError("Push", "app", req.Name, "artifact upload failed", err)
	}

	c.logger.Debug("pushed application", "app", req.Name, "artifact", req.ArtifactPath, "no_start", req.NoStart)
	return nil
}

// uploadBits streams the artifact to the platform.
func (c *HTTPClient) uploadBits(ctx context.Context, appName, artifactPath string) error {
	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v3/apps/"+url.PathEscape(appName)+"/bits", f)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/octet-stream")
	if info, err := f.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// BindService binds a service instance to an application.
func (c *HTTPClient) BindService(ctx context.Context, appName, instanceName string) error {
	body := map[string]string{
		"type":                  "app",
		"app_name":              appName,
		"service_instance_name": instanceName,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/service_credential_bindings", body, nil); err != nil {
		return NewPlatformError("BindService", "service_instance", instanceName, "bind failed", err)
	}
	c.logger.Debug("bound service", "app", appName, "service_instance", instanceName)
	return nil
}

// SetEnv sets one environment variable on an application.
func (c *HTTPClient) SetEnv(ctx context.Context, appName, name, value string) error {
	body := map[string]map[string]string{
		"var": {name: value},
	}
	path := "/v3/apps/" + url.PathEscape(appName) + "/environment_variables"
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return NewPlatformError("SetEnv", "app", appName, "set environment variable "+name+" failed", err)
	}
	c.logger.Debug("set environment variable", "app", appName, "name", name)
	return nil
}

// Start starts an application.
func (c *HTTPClient) Start(ctx context.Context, appName string) error {
	path := "/v3/apps/" + url.PathEscape(appName) + "/actions/start"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return NewPlatformError("Start", "app", appName, "start failed", err)
	}
	c.logger.Debug("started application", "app", appName)
	return nil
}

// GetApplication fetches an application by name.
func (c *HTTPClient) GetApplication(ctx context.Context, appName string) (*Application, error) {
	var app Application
	if err := c.doJSON(ctx, http.MethodGet, "/v3/apps/"+url.PathEscape(appName), nil, &app); err != nil {
		return nil, NewPlatformError("GetApplication", "app", appName, "lookup failed", err)
	}
	return &app, nil
}

// =============================================================================
// Service Instance Operations
// =============================================================================

// serviceInstancesResponse wraps the instance list.
type serviceInstancesResponse struct {
	Resources []ServiceInstance `json:"resources"`
}

// ListServiceInstances lists all service instances in the target space.
func (c *HTTPClient) ListServiceInstances(ctx context.Context) ([]ServiceInstance, error) {
	var out serviceInstancesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v3/service_instances", nil, &out); err != nil {
		return nil, NewPlatformError("ListServiceInstances", "service_instance", "", "list failed", err)
	}
	return out.Resources, nil
}

// CreateServiceInstance provisions a marketplace service.
func (c *HTTPClient) CreateServiceInstance(ctx context.Context, service, plan, instanceName string) error {
	body := map[string]string{
		"name":    instanceName,
		"service": service,
		"plan":    plan,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/service_instances", body, nil); err != nil {
		return NewPlatformError("CreateServiceInstance", "service_instance", instanceName, "create failed", err)
	}
	c.logger.Debug("created service instance", "service", service, "plan", plan, "instance", instanceName)
	return nil
}

// DeleteServiceInstance deletes a service instance by name.
func (c *HTTPClient) DeleteServiceInstance(ctx context.Context, instanceName string) error {
	path := "/v3/service_instances/" + url.PathEscape(instanceName)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return NewPlatformError("DeleteServiceInstance", "service_instance", instanceName, "delete failed", err)
	}
	c.logger.Debug("deleted service instance", "instance", instanceName)
	return nil
}

// =============================================================================
// Route Operations
// =============================================================================

// DeleteOrphanedRoutes removes routes with no application bound to them.
func (c *HTTPClient) DeleteOrphanedRoutes(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v3/routes?unmapped=true", nil, nil); err != nil {
		return NewPlatformError("DeleteOrphanedRoutes", "route", "", "delete failed", err)
	}
	c.logger.Debug("deleted orphaned routes")
	return nil
}

// =============================================================================
// Transport Helpers
// =============================================================================

// doJSON performs one JSON request/response round-trip.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrPlatform, err)
		}
		return nil
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// statusError maps an error response to the matching sentinel, carrying a
// snippet of the response body for diagnostics.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		sentinel = ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		sentinel = ErrInvalidRequest
	default:
		sentinel = ErrPlatform
	}

	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, msg)
}
