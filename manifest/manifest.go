// Package manifest handles sol25.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a sol25.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Run     Run     `toml:"run"`

	// Dir is the directory containing the sol25.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Source configures where the program AST comes from.
type Source struct {
	Entry string `toml:"entry"`
}

// Run configures interpreter behavior.
type Run struct {
	Verbosity int  `toml:"verbosity"`
	Cache     bool `toml:"cache"`
	Dump      bool `toml:"dump"`
}

// Load parses a sol25.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "sol25.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a sol25.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "sol25.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath resolves the configured entry relative to the manifest
// directory. Returns "" when no entry is configured.
func (m *Manifest) EntryPath() string {
	if m == nil || m.Source.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Source.Entry) {
		return m.Source.Entry
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}
