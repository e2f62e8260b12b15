// Package config loads billsync configuration from file, environment and
// defaults.
//
// Files named billsync.yaml, billsync.toml or billsync.json are searched in the
// working directory and in $HOME/.billsync unless an explicit path is given.
// Every key can be overridden from the environment with the BILLSYNC_ prefix,
// dots replaced by underscores (BILLSYNC_REMOTE_URL, BILLSYNC_LOG_LEVEL).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BILLSYNC"

// Config is the typed form of the configuration.
type Config struct {
	Store        StoreConfig        `mapstructure:"store"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Server       ServerConfig       `mapstructure:"server"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard"`
	Log          LogConfig          `mapstructure:"log"`
}

// StoreConfig locates the local store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig points the client at a sync endpoint.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig controls the periodic sync timer.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ConnectivityConfig controls reachability probing.
type ConnectivityConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the sync endpoint and its authoritative store.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	Path        string   `mapstructure:"path"`
	Dialect     string   `mapstructure:"dialect"`
	DSN         string   `mapstructure:"dsn"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	MaxBodyMB   int      `mapstructure:"max_body_mb"`
}

// DashboardConfig configures the live status stream of the daemon.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

var defaults = map[string]any{
	"store.path":            filepath.Join(".billsync", "local.db"),
	"remote.url":            "http://localhost:8080/api",
	"remote.timeout":        "30s",
	"sync.interval":         "5m",
	"connectivity.interval": "15s",
	"connectivity.timeout":  "5s",
	"server.addr":           ":8080",
	"server.path":           "/api",
	"server.dialect":        "sqlite",
	"server.dsn":            filepath.Join(".billsync", "remote.db"),
	"server.cors_origins":   []string{"*"},
	"server.max_body_mb":    32,
	"dashboard.enabled":     true,
	"dashboard.port":        8081,
	"log.level":             "info",
	"log.format":            "text",
	"log.file":              "",
	"log.max_size_mb":       50,
	"log.max_backups":       7,
	"log.max_age_days":      30,
	"log.compress":          true,
}

// New builds a viper instance with defaults, environment overrides and the
// config file at path (or the first one found in the search path). A missing
// file is only an error when path is explicit.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("billsync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".billsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration into a Config.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Decode converts and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("invalid config: store.path is required")
	}
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"remote.timeout", c.Remote.Timeout},
		{"sync.interval", c.Sync.Interval},
		{"connectivity.interval", c.Connectivity.Interval},
		{"connectivity.timeout", c.Connectivity.Timeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive", d.key)
		}
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid config: dashboard.port %d out of range", c.Dashboard.Port)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid config: log.format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// Watch calls fn with the re-decoded configuration whenever the config file
// changes on disk. fn receives the decode error instead when the new file is
// invalid, so the caller can keep running on the previous values. Watch
// reports false when v was built without a config file.
func Watch(v *viper.Viper, fn func(*Config, error)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Decode(v))
	})
	v.WatchConfig()
	return true
}
