package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultMemoryMB is used when the memory field is absent or unparsable.
	DefaultMemoryMB = 1024

	// randomWordPlaceholder in a host value is replaced with a fresh token on
	// every parse, so repeated deploys of the same manifest never collide on
	// the same host.
	randomWordPlaceholder = "${random-word}"
)

// =============================================================================
// Manifest Shape
// =============================================================================

// appBlock mirrors one entry of the manifest's applications sequence.
// Every field is optional.
type appBlock struct {
	Name      string     `yaml:"name"`
	Buildpack string     `yaml:"buildpack"`
	Memory    yaml.Node  `yaml:"memory"` // quantity string or bare MB integer
	Disk      int        `yaml:"disk"`
	Instances int        `yaml:"instances"`
	Domains   StringList `yaml:"domains"`
	Host      string     `yaml:"host"`
	Services  StringList `yaml:"services"` // scalar or sequence
	Env       yaml.Node  `yaml:"env"`      // kept as a node to preserve order
	Path      string     `yaml:"path"`
}

// =============================================================================
// Parser
// =============================================================================

// Parse reads a deployment manifest and returns one entry per application
// block that declares a resolvable artifact path, keyed by the absolute
// artifact path (resolved against the manifest file's directory). Blocks
// without a path are skipped. gen may be nil, in which case RandomToken
// is used for ${random-word} substitution.
func Parse(path string, gen TokenGenerator) (map[string]Application, error) {
	if gen == nil {
		gen = RandomToken
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewManifestError("", err.Error(), ErrManifestRead)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewManifestError("", "invalid YAML syntax", ErrInvalidManifest)
	}

	appsNode, ok := doc["applications"]
	if !ok {
		return nil, NewManifestError("applications", "missing applications sequence", ErrNoApplications)
	}
	if appsNode.Kind != yaml.SequenceNode {
		return nil, NewManifestError("applications", "applications must be a sequence", ErrInvalidManifest)
	}
	if len(appsNode.Content) == 0 {
		return nil, NewManifestError("applications", "applications sequence is empty", ErrNoApplications)
	}

	result := make(map[string]Application)
	for i, node := range appsNode.Content {
		field := fmt.Sprintf("applications[%d]", i)

		var blk appBlock
		if err := node.Decode(&blk); err != nil {
			return nil, NewManifestError(field, err.Error(), ErrInvalidManifest)
		}

		app, err := buildApplication(blk, field, gen)
		if err != nil {
			return nil, err
		}

		// A block without an artifact has nothing to push.
		if blk.Path == "" {
			continue
		}
		artifactPath, err := resolveArtifactPath(path, blk.Path)
		if err != nil {
			return nil, NewManifestError(field+".path", err.Error(), ErrInvalidField)
		}
		result[artifactPath] = app
	}

	return result, nil
}

// buildApplication converts a decoded manifest block into an Application.
func buildApplication(blk appBlock, field string, gen TokenGenerator) (Application, error) {
	app := Application{
		Name:      blk.Name,
		Buildpack: blk.Buildpack,
		MemoryMB:  memoryMBFromNode(&blk.Memory),
		DiskMB:    blk.Disk,
		Instances: blk.Instances,
		Domains:   blk.Domains,
		Services:  blk.Services,
	}

	if blk.Host != "" {
		host := blk.Host
		if strings.Contains(host, randomWordPlaceholder) {
			host = strings.ReplaceAll(host, randomWordPlaceholder, gen())
		}
		app.Hosts = []string{host}
	}

	env, err := decodeEnv(blk.Env, field+".env")
	if err != nil {
		return Application{}, err
	}
	app.Env = env

	return app, nil
}

// decodeEnv converts the env mapping node into an ordered variable list.
// Mapping nodes keep their content in document order, which is what makes
// the downstream set-env call order deterministic.
func decodeEnv(node yaml.Node, field string) ([]EnvVar, error) {
	if node.IsZero() || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, NewManifestError(field, "env must be a mapping", ErrInvalidField)
	}

	var env []EnvVar
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, NewManifestError(field+"."+key.Value, "env values must be scalars", ErrInvalidField)
		}
		env = append(env, EnvVar{Name: key.Value, Value: value.Value})
	}
	return env, nil
}

// memoryMBFromNode parses the memory field into megabytes. Bare integers are
// taken as MB; quantity strings like "512M" or "2G" are converted. Absent or
// unparsable values fall back to DefaultMemoryMB.
func memoryMBFromNode(node *yaml.Node) int {
	if node == nil || node.Kind != yaml.ScalarNode {
		return DefaultMemoryMB
	}
	return parseMemoryMB(node.Value)
}

func parseMemoryMB(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultMemoryMB
	}
	if mb, err := strconv.Atoi(raw); err == nil {
		if mb > 0 {
			return mb
		}
		return DefaultMemoryMB
	}
	bytes, err := units.RAMInBytes(raw)
	if err != nil || bytes <= 0 {
		return DefaultMemoryMB
	}
	mb := int(bytes / (1024 * 1024))
	if mb <= 0 {
		return DefaultMemoryMB
	}
	return mb
}

// resolveArtifactPath resolves an artifact path relative to the manifest's
// own directory.
func resolveArtifactPath(manifestPath, artifact string) (string, error) {
	if !filepath.IsAbs(artifact) {
		artifact = filepath.Join(filepath.Dir(manifestPath), artifact)
	}
	return filepath.Abs(artifact)
}
