// Package server provides configuration loading: defaults, an optional YAML
// config file, and BBOARD_* environment variables, layered through viper
// with a sanitize pass applying floors. The resulting Config is passed by
// handle to whoever needs it; there is no ambient configuration state.
package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig defines the parameters for per-connection command rate
// limiting.
type RateLimitConfig struct {
	Burst          int           `mapstructure:"burst"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

// Config holds the server configuration settings.
type Config struct {
	ListenAddr      string          `mapstructure:"listen_addr"`
	HTTPAddr        string          `mapstructure:"http_addr"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	MaxLineBytes    int             `mapstructure:"max_line_bytes"`
	HistoryReplay   int             `mapstructure:"history_replay"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	Groups          []string        `mapstructure:"groups"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// DefaultConfig returns the built-in defaults: the original service port,
// five catalog groups, and a two-message history replay.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":12345",
		HTTPAddr:        ":8080",
		AllowedOrigins:  []string{"http://localhost:8080"},
		MaxLineBytes:    1024,
		HistoryReplay:   2,
		ShutdownTimeout: 5 * time.Second,
		Groups:          []string{"group1", "group2", "group3", "group4", "group5"},
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
	}
}

// LoadConfig reads configuration from the given file, falling back to a
// bboard.yaml in the working directory when path is empty. Environment
// variables prefixed BBOARD_ override file values; missing optional files
// are not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("BBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return sanitizeConfig(cfg), nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("allowed_origins", def.AllowedOrigins)
	v.SetDefault("max_line_bytes", def.MaxLineBytes)
	v.SetDefault("history_replay", def.HistoryReplay)
	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)
	v.SetDefault("groups", def.Groups)
	v.SetDefault("rate_limit.burst", def.RateLimit.Burst)
	v.SetDefault("rate_limit.refill_interval", def.RateLimit.RefillInterval)
}

// sanitizeConfig applies floors so a partially specified configuration
// still yields a usable server.
func sanitizeConfig(cfg Config) Config {
	def := DefaultConfig()

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = def.HTTPAddr
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = def.MaxLineBytes
	}
	if cfg.HistoryReplay < 0 {
		cfg.HistoryReplay = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	groups := make([]string, 0, len(cfg.Groups))
	for _, name := range cfg.Groups {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	cfg.Groups = groups
	return cfg
}
