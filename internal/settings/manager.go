package settings

import (
	"encoding/json"
	"sync"
)

// Manager holds the process-wide settings. Sessions apply the configuration
// they fetched right before every check.
type Manager struct {
	mu        sync.RWMutex
	current   Settings
	listeners []func(old, updated Settings)
}

// NewManager creates a Manager starting from initial.
func NewManager(initial Settings) *Manager {
	return &Manager{current: initial}
}

// Apply parses and installs configuration. On error the current settings
// are left untouched.
func (m *Manager) Apply(config, workspaceConfig json.RawMessage) error {
	s, err := Parse(config, workspaceConfig)
	if err != nil {
		return err
	}
	m.Set(s)
	return nil
}

// Set installs s and notifies listeners if anything changed.
func (m *Manager) Set(s Settings) {
	m.mu.Lock()
	old := m.current
	m.current = s
	listeners := append([]func(old, updated Settings){}, m.listeners...)
	m.mu.Unlock()

	if len(Differences(old, s)) == 0 {
		return
	}
	for _, fn := range listeners {
		fn(old, s)
	}
}

// Current returns the current settings.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers fn to run after settings change.
func (m *Manager) OnChange(fn func(old, updated Settings)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}
