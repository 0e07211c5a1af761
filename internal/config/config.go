// Package config provides YAML/ENV-based configuration loading for the
// ACP client, adapted from the teacher's viper-backed config loader.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root client configuration.
type Config struct {
	// Host is the base station address to dial.
	Host string `mapstructure:"host"`
	// Port is the ACP TCP port.
	Port int `mapstructure:"port"`

	// DialTimeoutMS bounds the initial TCP connect.
	DialTimeoutMS int `mapstructure:"dial_timeout_ms"`
	// ReadTimeoutMS is loaded and defaulted to 10s but is not applied:
	// sessions read with session.DefaultReadTimeout, which a job can
	// override per call through Handle.ReceiveWithTimeout.
	ReadTimeoutMS int `mapstructure:"read_timeout_ms"`

	// Log holds logging configuration.
	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	Level       string         `mapstructure:"level"`
	Format      string         `mapstructure:"format"`
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Host:          "",
		Port:          5009,
		DialTimeoutMS: 5000,
		ReadTimeoutMS: 10000,
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/acpctl.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty) over the defaults
// above; ACP_-prefixed environment variables take precedence over both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ACP")
	v.AutomaticEnv()

	cfg := Default()
	bind(v, cfg)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	out := Default()
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if out.Host == "" {
		return nil, errors.New("config: host is required")
	}
	return out, nil
}

func bind(v *viper.Viper, cfg *Config) {
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dial_timeout_ms", cfg.DialTimeoutMS)
	v.SetDefault("read_timeout_ms", cfg.ReadTimeoutMS)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}
