package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".asyncprep"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "ASYNCPREP"
)

// Load reads the configuration from dir/config.yaml, or from
// ~/.asyncprep/config.yaml when dir is empty. Environment variables such as
// ASYNCPREP_PREPARE_WORKERS override file values.
// Returns the defaults if the file does not exist.
func Load(dir string) (*Config, error) {
	dir, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}
	v := newViper(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to dir/config.yaml (or the default
// directory). Inline passwords are moved to the OS keyring first.
func Save(dir string, cfg *Config) error {
	if err := StorePasswords(cfg); err != nil {
		return err
	}

	dir, err := resolveDir(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// No defaults here: each section is written as a whole.
	v := viper.New()
	v.SetConfigType(configType)
	v.Set("connections", cfg.Connections)
	v.Set("prepare", cfg.Prepare)
	v.Set("journal", cfg.Journal)
	v.Set("log", cfg.Log)
	v.Set("preferences", cfg.Preferences)

	path := filepath.Join(dir, configFile+"."+configType)
	return v.WriteConfigAs(path)
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		if c := cfg.FindConnection(cfg.Preferences.DefaultConnection); c != nil {
			return c
		}
	}

	return &cfg.Connections[0]
}

func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	dir, err := configDirPath()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return dir, nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("prepare.workers", 4)
	v.SetDefault("prepare.driver", DriverPostgres)
	v.SetDefault("prepare.library", "")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(dir, "journal.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", filepath.Join(dir, "asyncprep.log"))
	v.SetDefault("preferences.theme", "default")

	return v
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
