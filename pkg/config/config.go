package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvProduction is the runtime mode in which audit logging is active.
const EnvProduction = "production"

// Config carries runtime settings for the daemons and the operator CLI.
// Values load from a YAML file first; environment variables win over the file.
type Config struct {
	Env       string          `yaml:"env"`
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Auth      AuthConfig      `yaml:"auth"`
	Push      PushConfig      `yaml:"push"`
	Slack     SlackConfig     `yaml:"slack"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"`
}

type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type RateLimitConfig struct {
	QuestionsPerMinute int `yaml:"questions_per_minute"`
	QuestionsPerHour   int `yaml:"questions_per_hour"`
}

// Load reads the config file at path (optional), applies environment
// overrides, then defaults, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "GOONGOOM_ENV")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "JWT_TOKEN_TTL")
	setString(&cfg.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setString(&cfg.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	setString(&cfg.Push.Subject, "VAPID_SUBJECT")
	setString(&cfg.Slack.WebhookURL, "SLACK_WEBHOOK_URL")
	setInt(&cfg.RateLimit.QuestionsPerMinute, "RATE_QUESTIONS_PER_MINUTE")
	setInt(&cfg.RateLimit.QuestionsPerHour, "RATE_QUESTIONS_PER_HOUR")
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout <= 0 {
		cfg.HTTP.IdleTimeout = time.Minute
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.RateLimit.QuestionsPerMinute <= 0 {
		cfg.RateLimit.QuestionsPerMinute = 5
	}
	if cfg.RateLimit.QuestionsPerHour <= 0 {
		cfg.RateLimit.QuestionsPerHour = 60
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		return errors.New("postgres dsn is required")
	}
	return nil
}

// IsProduction reports whether the audit trail and other production-only
// behaviour should be active.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
