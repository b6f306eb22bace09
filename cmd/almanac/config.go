// Config loading for the almanac CLI. Configuration lives in config.yaml
// inside the config directory; flags override the file, the file overrides
// ALMANAC_* environment variables.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDriver        = "driver"
	cfgKeyDSN           = "dsn"
	cfgKeyCreateParents = "create_parents"
	cfgKeyLogQueries    = "log_queries"

	envConfigDir = "ALMANAC_CONFIG_DIR"
	envPrefix    = "ALMANAC"

	defaultConfigDirName = ".almanac"
	defaultDBFileName    = "almanac.db"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Almanac CLI configuration

# Database driver: sqlite or postgres
driver: sqlite

# Database DSN. For sqlite this is the database file path; for postgres a
# connection string. Defaults to almanac.db inside the config directory.
# dsn:

# Create missing parent collections implicitly on mkcol.
create_parents: false
`

// resolveConfigDir returns the configuration directory, by precedence:
// --config-dir flag, ALMANAC_CONFIG_DIR, then $(CWD)/.almanac.
func resolveConfigDir() (string, error) {
	if flagConfigDir != "" {
		return flagConfigDir, nil
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Join(cwd, defaultConfigDirName), nil
}

// newDefaultConfig returns a viper carrying only the built-in defaults,
// used until PersistentPreRunE loads the real file.
func newDefaultConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault(cfgKeyDriver, types.DriverSQLite)
	v.SetDefault(cfgKeyCreateParents, false)
	v.SetDefault(cfgKeyLogQueries, false)
	return v
}

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := newDefaultConfig()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if one does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// storeConfig assembles the store configuration by precedence: flags over
// config.yaml over defaults.
func storeConfig() (types.Config, error) {
	config := types.Config{
		Driver:        loadedConfig.GetString(cfgKeyDriver),
		DSN:           loadedConfig.GetString(cfgKeyDSN),
		CreateParents: loadedConfig.GetBool(cfgKeyCreateParents),
		LogQueries:    loadedConfig.GetBool(cfgKeyLogQueries),
	}
	if flagDriver != "" {
		config.Driver = flagDriver
	}
	if flagDB != "" {
		config.DSN = flagDB
	}
	if config.DSN == "" && config.Driver == types.DriverSQLite {
		configDir, err := resolveConfigDir()
		if err != nil {
			return types.Config{}, err
		}
		config.DSN = filepath.Join(configDir, defaultDBFileName)
	}
	return config, nil
}
