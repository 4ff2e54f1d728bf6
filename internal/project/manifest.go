// Package project loads the optional replica.yaml manifest describing a
// Replica project: its name, version, source files and the compiler
// version range it requires.
package project

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// DefaultManifestName is the manifest filename looked up next to the
// compiled sources.
const DefaultManifestName = "replica.yaml"

// Manifest describes one Replica project.
type Manifest struct {
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	Compiler string   `yaml:"compiler,omitempty"` // semver constraint, e.g. ">= 0.1.0"
	Sources  []string `yaml:"sources,omitempty"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates manifest content.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("invalid manifest: missing project name")
	}
	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return nil, fmt.Errorf("invalid manifest version %q: %w", m.Version, err)
		}
	}
	if m.Compiler != "" {
		if _, err := semver.NewConstraint(m.Compiler); err != nil {
			return nil, fmt.Errorf("invalid compiler constraint %q: %w", m.Compiler, err)
		}
	}

	return &m, nil
}

// CheckCompiler verifies the running compiler version against the
// manifest's constraint. A manifest without a constraint accepts any
// compiler.
func (m *Manifest) CheckCompiler(version string) error {
	if m.Compiler == "" {
		return nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("compiler version %q is not semver: %w", version, err)
	}

	c, err := semver.NewConstraint(m.Compiler)
	if err != nil {
		return fmt.Errorf("invalid compiler constraint %q: %w", m.Compiler, err)
	}

	if !c.Check(v) {
		return fmt.Errorf("project %q requires compiler %q, have %s", m.Name, m.Compiler, version)
	}

	return nil
}
