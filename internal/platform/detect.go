// Package platform resolves per-OS data directories.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ResolveModelDir returns the directory where speech model files are stored.
// An explicit override wins; otherwise the OS data directory convention
// applies.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	dataDir, err := defaultDataDirFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

func defaultDataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "subtitler"), nil
		}
		return filepath.Join(homeDir, ".local", "share", "subtitler"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "subtitler"), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
