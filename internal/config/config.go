// Package config provides configuration types and defaults for bookcatalog.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bookcatalog/internal/log"
	"bookcatalog/internal/tracing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. BOOKCATALOG_HTTP_ADDR.
const EnvPrefix = "BOOKCATALOG"

// Config holds all configuration options for bookcatalog.
type Config struct {
	// Remote is the base URL of a catalog exposed by `bookcatalog serve`.
	// Empty means the menu drives an in-process catalog.
	Remote  string         `mapstructure:"remote" yaml:"remote"`
	Log     LogConfig      `mapstructure:"log" yaml:"log"`
	HTTP    HTTPConfig     `mapstructure:"http" yaml:"http"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing"`
}

// LogConfig controls the debug log file.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Level   string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
	File    string `mapstructure:"file" yaml:"file"`
}

// HTTPConfig controls the serve command.
type HTTPConfig struct {
	Addr      string  `mapstructure:"addr" yaml:"addr"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 disables
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Enabled: false,
			Level:   "info",
			File:    "bookcatalog.log",
		},
		HTTP: HTTPConfig{
			Addr:      ":8080",
			RateLimit: 50,
			Burst:     100,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// SetDefaults registers every default with v so env overrides and
// Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("remote", d.Remote)
	v.SetDefault("log.enabled", d.Log.Enabled)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.rate_limit", d.HTTP.RateLimit)
	v.SetDefault("http.burst", d.HTTP.Burst)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.metric_interval", d.Tracing.MetricInterval)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load reads configuration into a Config. When path is empty the lookup
// order is .bookcatalog/config.yaml, then ~/.config/bookcatalog/config.yaml;
// a missing file is not an error. Environment variables override the file.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".bookcatalog")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "bookcatalog"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	} else {
		log.Debug(log.CatConfig, "config loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks option values that viper cannot type-check.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Enabled && c.Log.File == "" {
		return fmt.Errorf("log.file required when logging is enabled")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.Burst < 1 {
		return fmt.Errorf("http.burst must be at least 1 when rate limiting")
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: config is not secret
		return fmt.Errorf("writing config: %w", err)
	}
	log.Info(log.CatConfig, "default config written", "file", path)
	return nil
}
