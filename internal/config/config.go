// Package config loads service settings from an optional YAML file and
// ANTY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ANTY"

type Config struct {
	Env              string         `mapstructure:"env"`
	ListenAddr       string         `mapstructure:"listen_addr"`
	Database         DatabaseConfig `mapstructure:"database"`
	Workers          int            `mapstructure:"workers"`
	PollInterval     time.Duration  `mapstructure:"poll_interval"`
	BatchWaitTimeout time.Duration  `mapstructure:"batch_wait_timeout"`
	Policy           PolicyConfig   `mapstructure:"policy"`
	Auth             AuthConfig     `mapstructure:"auth"`
	Log              LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Backend string `mapstructure:"backend"` // postgres|sqlite|mysql
	URL     string `mapstructure:"url"`
}

type PolicyConfig struct {
	Dir     string `mapstructure:"dir"`
	Default string `mapstructure:"default"`
	Keyring string `mapstructure:"keyring"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text|json
}

// Development reports whether unauthenticated dev access may be allowed.
func (c Config) Development() bool { return c.Env == "development" || c.Env == "dev" }

var defaults = map[string]any{
	"env":                "development",
	"listen_addr":        ":8080",
	"database.backend":   "postgres",
	"database.url":       "",
	"workers":            2,
	"poll_interval":      "500ms",
	"batch_wait_timeout": "30s",
	"policy.dir":         "",
	"policy.default":     "",
	"policy.keyring":     "",
	"auth.secret":        "",
	"auth.issuer":        "antygravity",
	"auth.token_ttl":     "24h",
	"log.level":          "info",
	"log.format":         "text",
}

// Unprefixed variables kept for existing deployments.
var aliases = map[string]string{
	"env":          "APP_ENV",
	"listen_addr":  "LISTEN_ADDR",
	"database.url": "DATABASE_URL",
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for key, alias := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, alias)
	}
	return v
}

// ReadFile merges a YAML config file into v. A missing default file is not
// an error; an explicitly named one is.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("antygravity")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/antygravity")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.Database.Backend = strings.ToLower(strings.TrimSpace(cfg.Database.Backend))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once. Whether a database URL is
// present is left to DatabaseConfig.Validate since not every command opens
// the store.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"postgres", "sqlite", "mysql"}, c.Database.Backend) {
		errs = append(errs, fmt.Errorf("database.backend %q must be postgres, sqlite or mysql", c.Database.Backend))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive"))
	}
	if c.BatchWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("batch_wait_timeout must be positive"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if !c.Development() && c.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("auth.secret is required outside development"))
	}
	if c.Auth.Secret != "" && len(c.Auth.Secret) < 32 {
		errs = append(errs, fmt.Errorf("auth.secret must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

// Validate checks that the configured backend can be opened.
func (d DatabaseConfig) Validate() error {
	if d.Backend != "sqlite" && d.URL == "" {
		return fmt.Errorf("database.url (DATABASE_URL) is required for %s", d.Backend)
	}
	return nil
}
