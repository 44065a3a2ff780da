// Package plugin discovers external action plugins and runs the ones bound
// to recognized gestures.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// ManifestFile is the manifest looked up in each plugin directory.
const ManifestFile = "plugin.json"

// ErrInvalidManifest is returned for manifests that cannot be run.
var ErrInvalidManifest = errors.New("invalid plugin manifest")

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the plugin declares action.
func (m Manifest) Supports(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Validate checks that the manifest names a plugin, an executable inside
// the plugin directory and at least one action.
func (m Manifest) Validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidManifest)
	case m.Executable == "":
		return fmt.Errorf("%w: executable is required", ErrInvalidManifest)
	case !filepath.IsLocal(m.Executable):
		return fmt.Errorf("%w: executable %q leaves the plugin directory", ErrInvalidManifest, m.Executable)
	case len(m.Actions) == 0:
		return fmt.Errorf("%w: no actions declared", ErrInvalidManifest)
	}
	return nil
}

// LoadPlugin reads and validates the manifest in dir. A directory without a
// manifest yields an error matching os.ErrNotExist.
func LoadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &Plugin{
		Manifest:   m,
		Path:       dir,
		Executable: filepath.Join(dir, m.Executable),
	}, nil
}

// Request is written as JSON to the plugin's stdin.
type Request struct {
	Action    string          `json:"action"`
	Gesture   string          `json:"gesture"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Config    json.RawMessage `json:"config"`
}

// Response is read as JSON from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest `json:"manifest"`
	Path       string   `json:"path"`
	Executable string   `json:"executable"`
}
