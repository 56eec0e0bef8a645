package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Manager holds the active settings and reloads them from disk on demand.
type Manager struct {
	path    string
	current Settings
	mu      sync.RWMutex
}

// NewManager loads settings from path. An empty path uses defaults and the
// environment only.
func NewManager(path string) (*Manager, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, current: s}, nil
}

// Current returns the active settings.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Path returns the file the manager reads, if any.
func (m *Manager) Path() string { return m.path }

// Reload re-reads the file and environment. On error the active settings are
// kept.
func (m *Manager) Reload() (Settings, error) {
	s, err := Load(m.path)
	if err != nil {
		return m.Current(), err
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Save writes s to path as indented JSON after validating it.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(toFile(s), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
