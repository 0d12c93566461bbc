// Package config loads the consentbroker runtime configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Directory cache modes.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config holds values loaded from an optional config file and the environment.
// Environment variables always win over the file.
type Config struct {
	Addr     string `mapstructure:"CONSENT_ADDR"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns   int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns   int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnLifetime   time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	ConsentTxTimeout time.Duration `mapstructure:"CONSENT_TX_TIMEOUT"`

	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisPoolSize int    `mapstructure:"REDIS_POOL_SIZE"`

	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	AuditTopic         string        `mapstructure:"AUDIT_TOPIC"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxRetention    time.Duration `mapstructure:"OUTBOX_RETENTION"`

	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`

	DirectorySeedFile string        `mapstructure:"DIRECTORY_SEED_FILE"`
	DirectoryCache    string        `mapstructure:"DIRECTORY_CACHE"`
	DirectoryCacheTTL time.Duration `mapstructure:"DIRECTORY_CACHE_TTL"`
	DirectoryCacheMax int           `mapstructure:"DIRECTORY_CACHE_SIZE"`

	BlobFetchTimeout time.Duration `mapstructure:"BLOB_FETCH_TIMEOUT"`
	AWSRegion        string        `mapstructure:"AWS_REGION"`
	S3Endpoint       string        `mapstructure:"S3_ENDPOINT"`
}

// Load reads config.yml (searched in the working directory and its parents) and
// the environment into a validated Config.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.DirectoryCache = strings.ToLower(strings.TrimSpace(cfg.DirectoryCache))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CONSENT_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("CONSENT_TX_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_TOPIC", "consent.audit.entries")
	v.SetDefault("OUTBOX_POLL_INTERVAL", 100*time.Millisecond)
	v.SetDefault("OUTBOX_RETENTION", 24*time.Hour)
	v.SetDefault("JWT_SIGNING_KEY", devSigningKey)
	v.SetDefault("DIRECTORY_SEED_FILE", "")
	v.SetDefault("DIRECTORY_CACHE", CacheMemory)
	v.SetDefault("DIRECTORY_CACHE_TTL", time.Minute)
	v.SetDefault("DIRECTORY_CACHE_SIZE", 1024)
	v.SetDefault("BLOB_FETCH_TIMEOUT", 30*time.Second)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
}

// IsProduction reports whether strict production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures required values are present and consistent.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("CONSENT_ADDR is required")
	}
	if c.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required")
	}
	switch c.DirectoryCache {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when DIRECTORY_CACHE=redis")
		}
	default:
		return fmt.Errorf("DIRECTORY_CACHE must be one of none, memory, redis; got %q", c.DirectoryCache)
	}
	if c.ConsentTxTimeout <= 0 {
		return errors.New("CONSENT_TX_TIMEOUT must be positive")
	}
	if c.IsProduction() {
		if c.JWTSigningKey == devSigningKey || len(c.JWTSigningKey) < 32 {
			return errors.New("JWT_SIGNING_KEY must be changed and at least 32 characters in production")
		}
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in production")
		}
	}
	return nil
}
