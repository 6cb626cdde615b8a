package config

import (
	"log/slog"
	"path/filepath"

	"github.com/adrg/xdg"
)

// appDir is the subdirectory mediapool uses under each XDG base directory
const appDir = "mediapool"

// XDGDirs provides XDG Base Directory compliant paths
type XDGDirs struct{}

// NewXDGDirs creates a new XDG directory manager
func NewXDGDirs() *XDGDirs {
	return &XDGDirs{}
}

// ConfigPaths returns prioritized paths where a config file can be found:
// the user config dir first, then system config dirs
func (x *XDGDirs) ConfigPaths(filename string) []string {
	paths := []string{filepath.Join(xdg.ConfigHome, appDir, filename)}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, appDir, filename))
	}

	slog.Debug("generated config search paths",
		"filename", filename,
		"total_paths", len(paths))
	return paths
}

// UserConfigPath returns the writable user config path
func (x *XDGDirs) UserConfigPath(filename string) string {
	return filepath.Join(xdg.ConfigHome, appDir, filename)
}

// BankPaths returns prioritized paths where sample banks can be found:
// the user data dir first, then system data dirs
func (x *XDGDirs) BankPaths() []string {
	paths := []string{filepath.Join(xdg.DataHome, appDir, "banks")}
	for _, dir := range xdg.DataDirs {
		paths = append(paths, filepath.Join(dir, appDir, "banks"))
	}
	return paths
}

// CachePath returns the cache directory path for a specific purpose
func (x *XDGDirs) CachePath(purpose string) string {
	base := appDir
	if purpose != "" {
		base = filepath.Join(base, purpose)
	}
	return filepath.Join(xdg.CacheHome, base)
}

// DataPath returns the data directory path for a specific purpose
func (x *XDGDirs) DataPath(purpose string) string {
	base := appDir
	if purpose != "" {
		base = filepath.Join(base, purpose)
	}
	return filepath.Join(xdg.DataHome, base)
}
