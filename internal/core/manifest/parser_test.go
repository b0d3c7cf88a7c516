package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const fullManifest = `
applications:
  - name: demo
    buildpack: java_buildpack
    memory: 512M
    disk: 2048
    instances: 2
    domains: apps.example.com
    host: demo-${random-word}
    services:
      - redis-instance
      - postgres-instance
    env:
      SPRING_PROFILES_ACTIVE: cloud
      FOO: bar
    path: build/demo.jar
`

const minimalManifest = `
applications:
  - name: demo
    path: build/demo.jar
`

const noPathManifest = `
applications:
  - name: demo
    buildpack: java_buildpack
`

const multiAppManifest = `
applications:
  - name: frontend
    path: frontend/build/frontend.jar
  - name: backend
    path: backend/build/backend.jar
  - name: no-artifact
`

const scalarServicesManifest = `
applications:
  - name: demo
    services: redis-instance
    path: build/demo.jar
`

const literalHostManifest = `
applications:
  - name: demo
    host: demo-stable
    path: build/demo.jar
`

// writeManifest writes content to a manifest.yml in a temp dir and returns its path.
func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fixedTokens returns a TokenGenerator yielding tokens from the given sequence.
func fixedTokens(tokens ...string) TokenGenerator {
	i := 0
	return func() string {
		token := tokens[i%len(tokens)]
		i++
		return token
	}
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_FullManifest(t *testing.T) {
	path := writeManifest(t, fullManifest)

	apps, err := Parse(path, fixedTokens("tok-1"))
	require.NoError(t, err)
	require.Len(t, apps, 1)

	artifactPath := filepath.Join(filepath.Dir(path), "build", "demo.jar")
	app, ok := apps[artifactPath]
	require.True(t, ok, "expected entry keyed by resolved artifact path")

	assert.Equal(t, "demo", app.Name)
	assert.Equal(t, "java_buildpack", app.Buildpack)
	assert.Equal(t, 512, app.MemoryMB)
	assert.Equal(t, 2048, app.DiskMB)
	assert.Equal(t, 2, app.Instances)
	assert.Equal(t, []string{"apps.example.com"}, []string(app.Domains))
	assert.Equal(t, []string{"demo-tok-1"}, app.Hosts)
	assert.Equal(t, []string{"redis-instance", "postgres-instance"}, []string(app.Services))
	assert.Equal(t, []EnvVar{
		{Name: "SPRING_PROFILES_ACTIVE", Value: "cloud"},
		{Name: "FOO", Value: "bar"},
	}, app.Env)
}

func TestParse_MinimalManifest(t *testing.T) {
	path := writeManifest(t, minimalManifest)

	apps, err := Parse(path, nil)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	for _, app := range apps {
		assert.Equal(t, "demo", app.Name)
		assert.Equal(t, DefaultMemoryMB, app.MemoryMB)
		assert.Empty(t, app.Services)
		assert.Empty(t, app.Env)
		assert.Empty(t, app.Hosts)
	}
}

func TestParse_NoPathYieldsNoEntries(t *testing.T) {
	path := writeManifest(t, noPathManifest)

	apps, err := Parse(path, nil)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestParse_AllBlocksWithPathsAreReturned(t *testing.T) {
	path := writeManifest(t, multiAppManifest)

	apps, err := Parse(path, nil)
	require.NoError(t, err)
	require.Len(t, apps, 2)

	dir := filepath.Dir(path)
	assert.Contains(t, apps, filepath.Join(dir, "frontend", "build", "frontend.jar"))
	assert.Contains(t, apps, filepath.Join(dir, "backend", "build", "backend.jar"))
}

func TestParse_ScalarServicesBecomesSingleEntry(t *testing.T) {
	path := writeManifest(t, scalarServicesManifest)

	apps, err := Parse(path, nil)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	for _, app := range apps {
		assert.Equal(t, []string{"redis-instance"}, []string(app.Services))
		assert.Empty(t, app.Hosts, "a scalar services value must not leak into the host")
	}
}

func TestParse_EnvPreservesDocumentOrder(t *testing.T) {
	path := writeManifest(t, `
applications:
  - name: demo
    env:
      ZULU: "1"
      ALPHA: "2"
      MIKE: "3"
    path: demo.jar
`)

	apps, err := Parse(path, nil)
	require.NoError(t, err)

	for _, app := range apps {
		names := make([]string, 0, len(app.Env))
		for _, ev := range app.Env {
			names = append(names, ev.Name)
		}
		assert.Equal(t, []string{"ZULU", "ALPHA", "MIKE"}, names)
	}
}

func TestParse_EnvValuesAreStringified(t *testing.T) {
	path := writeManifest(t, `
applications:
  - name: demo
    env:
      PORT: 8080
      DEBUG: true
    path: demo.jar
`)

	apps, err := Parse(path, nil)
	require.NoError(t, err)

	for _, app := range apps {
		assert.Equal(t, []EnvVar{
			{Name: "PORT", Value: "8080"},
			{Name: "DEBUG", Value: "true"},
		}, app.Env)
	}
}

// =============================================================================
// Host Substitution Tests
// =============================================================================

func TestParse_RandomWordHostDiffersAcrossParses(t *testing.T) {
	path := writeManifest(t, fullManifest)

	first, err := Parse(path, nil)
	require.NoError(t, err)
	second, err := Parse(path, nil)
	require.NoError(t, err)

	var firstHost, secondHost string
	for _, app := range first {
		firstHost = app.Hosts[0]
	}
	for _, app := range second {
		secondHost = app.Hosts[0]
	}
	assert.NotEqual(t, firstHost, secondHost)
}

func TestParse_LiteralHostIsStableAcrossParses(t *testing.T) {
	path := writeManifest(t, literalHostManifest)

	first, err := Parse(path, nil)
	require.NoError(t, err)
	second, err := Parse(path, nil)
	require.NoError(t, err)

	for _, app := range first {
		assert.Equal(t, []string{"demo-stable"}, app.Hosts)
	}
	for _, app := range second {
		assert.Equal(t, []string{"demo-stable"}, app.Hosts)
	}
}

// =============================================================================
// Memory Parsing Tests
// =============================================================================

func TestParseMemoryMB(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"binary suffix M", "512M", 512},
		{"binary suffix G", "2G", 2048},
		{"bare integer is MB", "768", 768},
		{"empty falls back", "", DefaultMemoryMB},
		{"garbage falls back", "lots", DefaultMemoryMB},
		{"zero falls back", "0", DefaultMemoryMB},
		{"negative falls back", "-5", DefaultMemoryMB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseMemoryMB(tt.input))
		})
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.yml"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestRead)
}

func TestParse_MissingApplications(t *testing.T) {
	path := writeManifest(t, "name: demo\n")

	_, err := Parse(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoApplications)
}

func TestParse_EmptyApplications(t *testing.T) {
	path := writeManifest(t, "applications: []\n")

	_, err := Parse(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoApplications)
}

func TestParse_ApplicationsNotASequence(t *testing.T) {
	path := writeManifest(t, "applications: demo\n")

	_, err := Parse(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestParse_InvalidYAML(t *testing.T) {
	path := writeManifest(t, "applications:\n  - name: [unclosed\n")

	_, err := Parse(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestParse_EnvNotAMapping(t *testing.T) {
	path := writeManifest(t, `
applications:
  - name: demo
    env: not-a-mapping
    path: demo.jar
`)

	_, err := Parse(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidField)

	var mErr *ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "applications[0].env", mErr.Field)
}
