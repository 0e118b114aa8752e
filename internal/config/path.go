// Package config loads and validates hotel-scout settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir       = "hotelscout"
	databaseFile = "hotelscout.db"
)

// DefaultDatabasePath places the database under $XDG_DATA_HOME, falling back to
// ~/.local/share when it is unset.
func DefaultDatabasePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDir, databaseFile)
	}
	return filepath.Join("~", ".local", "share", appDir, databaseFile)
}

// ExpandPath resolves a leading ~ and $VAR references in a configured path.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return ""
	case path == "~" || strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}
