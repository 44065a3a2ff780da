package plugin

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/bhangra/internal/logger"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager is the registry of plugins found under one directory. Bindings
// name plugins, so lookups are by manifest name, not directory name.
type Manager struct {
	dir string

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for dir. Nothing is loaded until Discover.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		plugins: make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory and replaces the registry. Each
// subdirectory holding a valid manifest is one plugin; broken ones are
// logged and skipped. A missing directory leaves the registry empty.
func (m *Manager) Discover() error {
	found, err := m.scan()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	logger.Infof("discovered %d plugin(s) in %s", len(found), m.dir)
	return nil
}

// scan runs without the lock so lookups keep working during a rescan.
func (m *Manager) scan() (map[string]*Plugin, error) {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return found, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p, err := LoadPlugin(filepath.Join(m.dir, entry.Name()))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			logger.Warnf("skipping plugin %s: %v", entry.Name(), err)
			continue
		}

		if prev, ok := found[p.Manifest.Name]; ok {
			logger.Warnf("skipping plugin %s: name %q already used by %s", entry.Name(), p.Manifest.Name, prev.Path)
			continue
		}
		found[p.Manifest.Name] = p
	}
	return found, nil
}

// Get returns a plugin by manifest name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.plugins[name]; ok {
		return p, nil
	}
	return nil, ErrPluginNotFound
}

// List returns the discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	list := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		list = append(list, p)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Manifest.Name < list[j].Manifest.Name
	})
	return list
}

// Dir returns the scanned directory.
func (m *Manager) Dir() string {
	return m.dir
}
