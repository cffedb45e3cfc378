// Package config resolves on-disk paths and loads the daemon settings file.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// WorktreeCleanup controls whether finished prompts' git worktrees are
// removed automatically or left for `clean-worktrees`.
type WorktreeCleanup int

const (
	CleanupManual WorktreeCleanup = iota
	CleanupAuto
)

// Settings is the user-editable daemon configuration,
// `~/.config/clhorde/settings.yaml`.
type Settings struct {
	MaxSavedPrompts int    `yaml:"max_saved_prompts"`
	WorktreeCleanup string `yaml:"worktree_cleanup"`
	DefaultMode     string `yaml:"default_mode"`
	LogLevel        string `yaml:"log_level"`
}

// LoadSettings reads the settings file, falling back to defaults on any
// error. A missing or malformed file is not fatal.
func LoadSettings() Settings {
	s := Settings{
		MaxSavedPrompts: 100,
		WorktreeCleanup: "manual",
		DefaultMode:     "interactive",
		LogLevel:        "info",
	}
	path, err := settingsPath()
	if err != nil {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{
			MaxSavedPrompts: 100,
			WorktreeCleanup: "manual",
			DefaultMode:     "interactive",
			LogLevel:        "info",
		}
	}
	if s.MaxSavedPrompts <= 0 {
		s.MaxSavedPrompts = 100
	}
	return s
}

// Cleanup maps the settings string to a WorktreeCleanup mode.
func (s Settings) Cleanup() WorktreeCleanup {
	if s.WorktreeCleanup == "auto" {
		return CleanupAuto
	}
	return CleanupManual
}
