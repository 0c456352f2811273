package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults applied when neither the environment nor a config file sets
// a value.
const (
	DefaultListen      = ":8080"
	DefaultDatabaseURL = "sqlite:////data/app.db"
	DefaultLogLevel    = "INFO"
)

// Config holds all runtime configuration for the service. Values come
// from environment variables first, with an optional YAML file as a
// fallback for local development.
type Config struct {
	Listen      string `mapstructure:"LISTEN"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// WebhookSecret is the shared HMAC secret. It may be empty, in
	// which case the service starts but never reports ready.
	WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
}

// Load reads configuration from the environment and, if configPath is
// non-empty, from a YAML file (environment wins).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("LISTEN", DefaultListen)
	v.SetDefault("DATABASE_URL", DefaultDatabaseURL)
	v.SetDefault("LOG_LEVEL", DefaultLogLevel)
	v.SetDefault("WEBHOOK_SECRET", "")

	v.AutomaticEnv()
	// AutomaticEnv alone does not surface env vars through Unmarshal,
	// so bind each key explicitly.
	for _, key := range []string{"LISTEN", "DATABASE_URL", "LOG_LEVEL", "WEBHOOK_SECRET"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Listen == "" {
		return nil, fmt.Errorf("listen address is empty")
	}
	if _, err := SQLitePath(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SQLitePath extracts the filesystem path from a sqlite:/// database URL.
// A bare path (no scheme) is accepted as-is.
func SQLitePath(databaseURL string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("database URL is empty")
	}
	if strings.HasPrefix(databaseURL, "sqlite:///") {
		path := strings.TrimPrefix(databaseURL, "sqlite:///")
		if path == "" {
			return "", fmt.Errorf("database URL %q has no path", databaseURL)
		}
		return path, nil
	}
	if strings.Contains(databaseURL, "://") {
		return "", fmt.Errorf("unsupported database URL %q (only sqlite:/// is supported)", databaseURL)
	}
	return databaseURL, nil
}
