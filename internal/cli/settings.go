package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const settingsName = ".chatctl.yaml"

// Settings are the persisted chatctl defaults.
type Settings struct {
	Server  string `yaml:"server" json:"server"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultSettingsPath is ~/.chatctl.yaml, or empty when there is no home.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, settingsName)
}

// LoadSettings reads path. A missing file yields zero settings.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if path == "" {
		return &s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &s, nil
}

func SaveSettings(s *Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
