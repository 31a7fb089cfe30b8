package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/metacall/core/internal/adapter"
	"gopkg.in/yaml.v3"
)

// ManifestEntry is one language block of a load_from_configuration
// document (spec.md §6): a tag, an optional execution path, and the
// scripts to load from file, in order.
type ManifestEntry struct {
	Tag           string   `yaml:"tag"`
	ExecutionPath string   `yaml:"execution_path,omitempty"`
	Scripts       []string `yaml:"scripts"`
}

// Manifest is the full load_from_configuration document: one entry per
// language.
type Manifest struct {
	Languages []ManifestEntry `yaml:"languages"`
}

// ParseManifest decodes a configuration document from r.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("loader: decode configuration: %w", err)
	}
	if len(m.Languages) == 0 {
		return nil, fmt.Errorf("loader: configuration declares no languages")
	}
	return &m, nil
}

// LoadFromConfiguration reads a configuration file enumerating, per
// language, an execution path and an array of scripts, and invokes
// load_from_file for each entry in order (spec.md §4.2, §6). Returns one
// handle per language entry in declaration order.
func (m *Manager) LoadFromConfiguration(path string) ([]*adapter.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open configuration %s: %w", path, err)
	}
	defer f.Close()

	manifest, err := ParseManifest(f)
	if err != nil {
		return nil, err
	}

	var handles []*adapter.Handle
	for _, entry := range manifest.Languages {
		var execPaths []string
		if entry.ExecutionPath != "" {
			execPaths = []string{entry.ExecutionPath}
		}
		h, err := m.LoadFromFile(entry.Tag, entry.Scripts, nil, execPaths)
		if err != nil {
			return handles, fmt.Errorf("loader: configuration entry %q: %w", entry.Tag, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}
