// Package config loads server settings.
//
// Settings are layered so the same binary runs in development, CI and
// production without recompiling:
//
//  1. an optional YAML file (CONFIG_FILE, or ./config.yaml when present)
//  2. an optional .env file
//  3. the process environment, which always wins
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment names accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds every runtime setting.
type Config struct {
	Env  string `yaml:"env"`
	Addr string `yaml:"addr"`

	DatabaseURL string `yaml:"database_url"`

	JWTSecret    string        `yaml:"jwt_secret"`
	JWTExpiresIn time.Duration `yaml:"jwt_expires_in"`

	// ClientOrigin is the browser origin allowed by CORS and by the
	// WebSocket handshake. "*" allows any origin.
	ClientOrigin string `yaml:"client_origin"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	SchedulerEnabled bool `yaml:"scheduler_enabled"`

	NotificationRetention time.Duration `yaml:"notification_retention"`
	AnalyticsRetention    time.Duration `yaml:"analytics_retention"`
}

// Defaults returns the development configuration.
func Defaults() Config {
	return Config{
		Env:                   EnvDevelopment,
		Addr:                  ":8080",
		DatabaseURL:           "eventhub.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		JWTSecret:             "changeme-use-a-real-secret-in-production",
		JWTExpiresIn:          72 * time.Hour,
		ClientOrigin:          "*",
		LogLevel:              "info",
		LogFormat:             "text",
		NotificationRetention: 365 * 24 * time.Hour,
		AnalyticsRetention:    2 * 365 * 24 * time.Hour,
	}
}

// IsProduction reports whether secure cookies and the scheduler auto-start apply.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// Load builds the configuration from the YAML file, the .env file and the
// environment, in that order of increasing precedence.
func Load() (Config, error) {
	cfg := Defaults()

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	if err := loadYAML(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	schedulerSet, err := applyEnv(&cfg)
	if err != nil {
		return Config{}, err
	}
	if !schedulerSet && cfg.IsProduction() {
		cfg.SchedulerEnabled = true
	}

	if cfg.IsProduction() && cfg.JWTSecret == Defaults().JWTSecret {
		return Config{}, errors.New("JWT_SECRET must be set in production")
	}
	return cfg, nil
}

// yamlConfig mirrors Config with string durations, which is how humans
// write them in YAML.
type yamlConfig struct {
	Env                   string `yaml:"env"`
	Addr                  string `yaml:"addr"`
	DatabaseURL           string `yaml:"database_url"`
	JWTSecret             string `yaml:"jwt_secret"`
	JWTExpiresIn          string `yaml:"jwt_expires_in"`
	ClientOrigin          string `yaml:"client_origin"`
	LogLevel              string `yaml:"log_level"`
	LogFormat             string `yaml:"log_format"`
	SchedulerEnabled      *bool  `yaml:"scheduler_enabled"`
	NotificationRetention string `yaml:"notification_retention"`
	AnalyticsRetention    string `yaml:"analytics_retention"`
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setString(&cfg.Env, y.Env)
	setString(&cfg.Addr, y.Addr)
	setString(&cfg.DatabaseURL, y.DatabaseURL)
	setString(&cfg.JWTSecret, y.JWTSecret)
	setString(&cfg.ClientOrigin, y.ClientOrigin)
	setString(&cfg.LogLevel, y.LogLevel)
	setString(&cfg.LogFormat, y.LogFormat)
	if y.SchedulerEnabled != nil {
		cfg.SchedulerEnabled = *y.SchedulerEnabled
	}
	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&cfg.JWTExpiresIn, y.JWTExpiresIn, "jwt_expires_in"},
		{&cfg.NotificationRetention, y.NotificationRetention, "notification_retention"},
		{&cfg.AnalyticsRetention, y.AnalyticsRetention, "analytics_retention"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// applyEnv overlays environment variables. It reports whether
// SCHEDULER_ENABLED was set explicitly.
func applyEnv(cfg *Config) (bool, error) {
	setString(&cfg.Env, os.Getenv("APP_ENV"))
	setString(&cfg.Addr, os.Getenv("ADDR"))
	setString(&cfg.DatabaseURL, os.Getenv("DATABASE_URL"))
	setString(&cfg.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&cfg.ClientOrigin, os.Getenv("CLIENT_ORIGIN"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.LogFormat, os.Getenv("LOG_FORMAT"))

	for key, dst := range map[string]*time.Duration{
		"JWT_EXPIRES_IN":         &cfg.JWTExpiresIn,
		"NOTIFICATION_RETENTION": &cfg.NotificationRetention,
		"ANALYTICS_RETENTION":    &cfg.AnalyticsRetention,
	} {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
	}

	raw := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED"))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("SCHEDULER_ENABLED: %w", err)
	}
	cfg.SchedulerEnabled = v
	return true, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
