package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Settings holds the configuration read at call time by handlers and
// services, as opposed to boot-only configuration owned by cmd/api.
type Settings struct {
	WebhookURL        string        `json:"webhook_url"`
	WebhookTimeoutStr string        `json:"webhook_timeout"`
	WebhookTimeout    time.Duration `json:"-"`
}

// Store keeps the current settings snapshot and swaps it on explicit
// reload. Readers always see a complete snapshot, never a partial write.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Settings
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the settings in effect right now.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the settings file and swaps the snapshot atomically.
// On error the previous snapshot stays in effect.
func (s *Store) Reload() (Settings, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var next Settings
	if err := json.Unmarshal(content, &next); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	if next.WebhookTimeoutStr != "" {
		next.WebhookTimeout, err = time.ParseDuration(next.WebhookTimeoutStr)
		if err != nil {
			return Settings{}, fmt.Errorf("parse webhook_timeout: %w", err)
		}
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	return next, nil
}
