package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "ghdrive"

// File names inside the application directories.
const (
	configFileName    = "config.toml"
	tokenFileName     = "token.json"
	blobCacheFileName = "blobs.db"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/ghdrive).
// On macOS, uses ~/Library/Application Support/ghdrive.
// Other platforms fall back to ~/.config/ghdrive.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for application data
// (the saved token).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/ghdrive).
// On macOS, uses ~/Library/Application Support/ghdrive.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultCacheDir returns the platform-specific directory for cache files.
// On Linux, respects XDG_CACHE_HOME (defaults to ~/.cache/ghdrive).
// On macOS, uses ~/Library/Caches/ghdrive.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxCacheDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Caches", appName)
	default:
		return filepath.Join(home, ".cache", appName)
	}
}

// linuxCacheDir returns the XDG-compliant cache directory for Linux.
func linuxCacheDir(home string) string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".cache", appName)
}

// DefaultConfigPath returns the full path to the default config file,
// used when neither GHDRIVE_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// TokenPath returns where the OAuth token is stored: github.token_file if
// set, otherwise token.json in the data directory.
func TokenPath(cfg *Config) string {
	if cfg.GitHub.TokenFile != "" {
		return expandTilde(cfg.GitHub.TokenFile)
	}

	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, tokenFileName)
}

// BlobCachePath returns the blob cache database path: inside
// cache.blob_cache_dir if set, otherwise the platform cache directory.
func BlobCachePath(cfg *Config) string {
	dir := expandTilde(cfg.Cache.BlobCacheDir)
	if dir == "" {
		dir = DefaultCacheDir()
	}

	if dir == "" {
		return ""
	}

	return filepath.Join(dir, blobCacheFileName)
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return filepath.Join(home, p[2:])
}
