package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// DataDirs returns the XDG data directories, most specific last.
// Falls back to the standard defaults when XDG_DATA_DIRS is unset.
func DataDirs() []string {
	raw := os.Getenv("XDG_DATA_DIRS")
	if raw == "" {
		raw = "/usr/local/share:/usr/share"
	}

	var dirs []string
	for _, dir := range strings.Split(raw, ":") {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		local := filepath.Join(home, ".local", "share")
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			dirs = append(dirs, local)
		}
	}

	return dirs
}

// CacheDir returns the application cache directory, creating it if needed.
func CacheDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}

	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
