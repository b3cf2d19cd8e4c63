// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type GatewayConfig struct {
	BaseURL      string        `yaml:"base_url"`
	SessionToken string        `yaml:"session_token"`
	Timeout      time.Duration `yaml:"timeout"`    // per request
	Visibility   string        `yaml:"visibility"` // private | unlisted | public
}

type PollerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	MaxConcurrent int           `yaml:"max_concurrent"` // status fetches per tick and submissions per batch in flight
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type WorkersConfig struct {
	Notifications int `yaml:"notifications"`
}

type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Poller    PollerConfig    `yaml:"poller"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Workers   WorkersConfig   `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	envSessionToken  = "VIDNAG_SESSION_TOKEN"
	envTelegramToken = "VIDNAG_TELEGRAM_TOKEN"
)

// LoadConfig reads the YAML file at path, applies .env / environment
// overrides for secrets, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	// a missing .env is fine; variables may come from the real environment
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML bytes and finalizes the result like LoadConfig does.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envSessionToken)); v != "" {
		cfg.Gateway.SessionToken = v
	}
	if v := strings.TrimSpace(os.Getenv(envTelegramToken)); v != "" {
		cfg.Telegram.Token = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Gateway.Visibility == "" {
		cfg.Gateway.Visibility = "private"
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = 2 * time.Second
	}
	if cfg.Poller.MaxConcurrent <= 0 {
		cfg.Poller.MaxConcurrent = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8081
	}
	if cfg.RateLimit.Limit <= 0 {
		cfg.RateLimit.Limit = 20
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Hour
	}
	if cfg.Workers.Notifications <= 0 {
		cfg.Workers.Notifications = 2
	}
	cfg.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Gateway.BaseURL), "/")
}

func validate(cfg *Config) error {
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required")
	}
	u, err := url.Parse(cfg.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway.base_url is not an absolute URL: %q", cfg.Gateway.BaseURL)
	}
	switch cfg.Gateway.Visibility {
	case "private", "unlisted", "public":
	default:
		return fmt.Errorf("gateway.visibility must be private, unlisted or public, got %q", cfg.Gateway.Visibility)
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}
