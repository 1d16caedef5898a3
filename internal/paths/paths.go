// Package paths resolves the catchlog configuration, data and export
// directories.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name catchlog uses under platform locations.
const AppName = "catchlog"

// ExportDirName is the directory under the data directory that export and
// backup files are written to.
const ExportDirName = "exports"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CATCHLOG_CONFIG_DIR"
	EnvDataDir   = "CATCHLOG_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdgDir returns $<env>/catchlog, falling back to ~/<fallback...>/catchlog
// on Linux. Other platforms use os.UserConfigDir for both config and data.
func xdgDir(env string, fallback ...string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), AppName)...), nil
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/catchlog (fallback ~/.config/catchlog)
// macOS:   ~/Library/Application Support/catchlog
// Windows: %APPDATA%/catchlog
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/catchlog (fallback ~/.local/share/catchlog)
// macOS:   ~/Library/Application Support/catchlog
// Windows: %APPDATA%/catchlog
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > CATCHLOG_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > CATCHLOG_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ExportDir returns the directory export files are written to for dataDir.
func ExportDir(dataDir string) string {
	return filepath.Join(dataDir, ExportDirName)
}
