package manifest

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Application Types
// =============================================================================

// EnvVar is a single environment variable. Variables keep the order in which
// they appear in the manifest, since the platform applies them in call order.
type EnvVar struct {
	Name  string
	Value string
}

// Application is the parsed form of one application block.
// Immutable after Parse returns.
type Application struct {
	Name      string
	Buildpack string
	MemoryMB  int
	DiskMB    int
	Instances int
	Domains   []string
	Hosts     []string
	Services  []string
	Env       []EnvVar
}

// =============================================================================
// Token Generation
// =============================================================================

// TokenGenerator produces a unique token for ${random-word} host substitution.
// Injected so tests can substitute a deterministic sequence.
type TokenGenerator func() string

// RandomToken is the default TokenGenerator.
func RandomToken() string {
	return uuid.NewString()
}

// =============================================================================
// YAML Helper Types
// =============================================================================

// StringList decodes a YAML value that may be either a single scalar or a
// sequence of scalars into a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*l = nil
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = StringList(items)
	default:
		return fmt.Errorf("expected a string or a sequence of strings")
	}
	return nil
}
