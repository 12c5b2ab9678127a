package config

import (
	"os"
	"path/filepath"
)

const appDir = "dojo-trainer"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigDir is where config.toml and the UI preferences live
func DefaultConfigDir() string {
	return filepath.Join(XDGConfigHome(), appDir)
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appDir, "dojo.db")
}

// DefaultLogPath returns the default path of the rotating log file.
func DefaultLogPath() string {
	return filepath.Join(XDGDataHome(), appDir, "dojo-trainer.log")
}
