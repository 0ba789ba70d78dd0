package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tableside/internal/paths"
	"github.com/mesh-intelligence/tableside/internal/server"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Config keys.
	cfgKeyBackend    = "backend"
	cfgKeyDataDir    = "data_dir"
	cfgKeyListenAddr = "listen_addr"
	cfgKeyCurrency   = "currency"
	cfgKeySessionTTL = "session_ttl"
	cfgKeyCORS       = "cors_origins"

	defaultListenAddr = ":8080"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# tableside configuration

# Storage backend
backend: sqlite

# Data directory (optional; overridden by --data-dir)
# data_dir:

# HTTP listen address for "tableside serve"
listen_addr: ":8080"

# Prefix printed before prices, e.g. "$" or "Rp "
currency: ""

# Idle selection sessions are cancelled after this long
session_ttl: 30m

# Browser origins allowed to call the HTTP API
cors_origins: []
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. listen_addr can also come from
// TABLESIDE_LISTEN_ADDR, which may be set in a .env file in the working
// directory.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)
	v.SetDefault(cfgKeySessionTTL, server.DefaultSessionTTL)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("TABLESIDE")
	if err := v.BindEnv(cfgKeyListenAddr); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates config.yaml unless it already exists.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// storeConfig builds the store configuration from flags and config.yaml.
func storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	c := types.Config{
		Backend: cfg.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}
	return c, c.Validate()
}

func sessionTTL() time.Duration {
	return cfg.GetDuration(cfgKeySessionTTL)
}

func price(v float64) string {
	return fmt.Sprintf("%s%.2f", cfg.GetString(cfgKeyCurrency), v)
}
