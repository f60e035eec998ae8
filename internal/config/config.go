// Package config loads and validates the PromptHub service configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config models prompthub.yml plus PROMPTHUB_-prefixed environment overrides.
type Config struct {
	Server struct {
		ListenAddr     string `yaml:"listen_addr" mapstructure:"listen_addr"`
		BasePath       string `yaml:"base_path" mapstructure:"base_path"`
		RequestTimeout int    `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	} `yaml:"server" mapstructure:"server"`

	DB struct {
		DSN string `yaml:"dsn" mapstructure:"dsn"`
	} `yaml:"db" mapstructure:"db"`

	Auth struct {
		JWTSecret              string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header" mapstructure:"allow_legacy_actor_header"`
	} `yaml:"auth" mapstructure:"auth"`

	Pagination struct {
		DefaultPageSize int `yaml:"default_page_size" mapstructure:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size" mapstructure:"max_page_size"`
	} `yaml:"pagination" mapstructure:"pagination"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
		MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	} `yaml:"cache" mapstructure:"cache"`

	CallLog struct {
		QueueDepth       int `yaml:"queue_depth" mapstructure:"queue_depth"`
		ContentMaxLength int `yaml:"content_max_length" mapstructure:"content_max_length"`
	} `yaml:"call_log" mapstructure:"call_log"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// Validate ensures the config meets the structural invariants the rest of
// the service assumes (non-zero timeouts, sane pagination caps, etc).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("config.server.listen_addr is required")
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("config.db.dsn is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("config.server.request_timeout_seconds must be positive")
	}
	if c.Pagination.DefaultPageSize <= 0 {
		return fmt.Errorf("config.pagination.default_page_size must be positive")
	}
	if c.Pagination.MaxPageSize < c.Pagination.DefaultPageSize {
		return fmt.Errorf("config.pagination.max_page_size must be >= default_page_size")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("config.cache.ttl_seconds must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config.cache.max_entries must be positive")
	}
	if c.CallLog.QueueDepth <= 0 {
		return fmt.Errorf("config.call_log.queue_depth must be positive")
	}
	return nil
}

// Default returns the baked-in default configuration.
func Default() *Config {
	cfg := &Config{}
	_ = yaml.Unmarshal([]byte(defaultTemplate), cfg)
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes, layering onto
// the baked-in defaults so a partial file only needs to name overrides.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Load reads configPath if non-empty, falling back to defaults, then applies
// PROMPTHUB_-prefixed environment variable overrides via viper.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config yaml: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("PROMPTHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyEnvOverride(v, "server.listen_addr", &cfg.Server.ListenAddr)
	applyEnvOverride(v, "server.base_path", &cfg.Server.BasePath)
	applyEnvOverrideInt(v, "server.request_timeout_seconds", &cfg.Server.RequestTimeout)
	applyEnvOverride(v, "db.dsn", &cfg.DB.DSN)
	applyEnvOverride(v, "auth.jwt_secret", &cfg.Auth.JWTSecret)
	applyEnvOverrideInt(v, "pagination.default_page_size", &cfg.Pagination.DefaultPageSize)
	applyEnvOverrideInt(v, "pagination.max_page_size", &cfg.Pagination.MaxPageSize)
	applyEnvOverrideInt(v, "cache.ttl_seconds", &cfg.Cache.TTLSeconds)
	applyEnvOverrideInt(v, "cache.max_entries", &cfg.Cache.MaxEntries)
	applyEnvOverrideInt(v, "call_log.queue_depth", &cfg.CallLog.QueueDepth)
	applyEnvOverrideInt(v, "call_log.content_max_length", &cfg.CallLog.ContentMaxLength)
	applyEnvOverride(v, "log_level", &cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverride(v *viper.Viper, key string, dest *string) {
	_ = v.BindEnv(key)
	if val := v.GetString(key); val != "" {
		*dest = val
	}
}

func applyEnvOverrideInt(v *viper.Viper, key string, dest *int) {
	_ = v.BindEnv(key)
	if val := v.GetString(key); val != "" {
		if n := v.GetInt(key); n != 0 {
			*dest = n
		}
	}
}

const defaultTemplate = `server:
  listen_addr: ":8080"
  base_path: "/api/v1"
  request_timeout_seconds: 30

db:
  dsn: "prompthub.db"

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false

pagination:
  default_page_size: 20
  max_page_size: 100

cache:
  ttl_seconds: 300
  max_entries: 4096

call_log:
  queue_depth: 1024
  content_max_length: 8192

log_level: "info"
`
