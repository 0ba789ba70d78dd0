// Package paths resolves where tableside keeps its config.yaml and its
// JSONL data files.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories on every platform.
const AppName = "tableside"

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".tableside"
	DefaultDataDirName   = ".tableside-db"
)

// ConfigFileName is the viper config file inside the config directory.
const ConfigFileName = "config.yaml"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TABLESIDE_CONFIG_DIR"
	EnvDataDir   = "TABLESIDE_DATA_DIR"
)

// platformDir holds platform-detection functions that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdgDir returns $<env>/tableside on Linux, falling back to
// ~/<fallback...>/tableside. Other platforms use os.UserConfigDir.
func xdgDir(env string, fallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if v := os.Getenv(env); v != "" {
		return filepath.Join(v, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), AppName)...), nil
}

// DefaultConfigDir returns the platform default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/tableside (fallback ~/.config/tableside)
// macOS:   ~/Library/Application Support/tableside
// Windows: %APPDATA%/tableside
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform default data directory. It is only
// used by callers that opt out of the CWD-relative default.
//
// Linux:   $XDG_DATA_HOME/tableside (fallback ~/.local/share/tableside)
// macOS and Windows: same as DefaultConfigDir.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir returns the configuration directory:
// flag > TABLESIDE_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > config.yaml data_dir > TABLESIDE_DATA_DIR > $(CWD)/.tableside-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the path of config.yaml inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
