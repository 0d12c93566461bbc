package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Addr:             ":8080",
		Env:              "development",
		JWTSigningKey:    "k",
		DirectoryCache:   CacheMemory,
		ConsentTxTimeout: time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"development defaults", func(*Config) {}, false},
		{"missing addr", func(c *Config) { c.Addr = "" }, true},
		{"unknown cache mode", func(c *Config) { c.DirectoryCache = "disk" }, true},
		{"redis cache without url", func(c *Config) { c.DirectoryCache = CacheRedis }, true},
		{"redis cache with url", func(c *Config) {
			c.DirectoryCache = CacheRedis
			c.RedisURL = "redis://localhost:6379"
		}, false},
		{"production with dev key", func(c *Config) {
			c.Env = "production"
			c.JWTSigningKey = devSigningKey
			c.DatabaseURL = "postgres://db"
		}, true},
		{"production without database", func(c *Config) {
			c.Env = "prod"
			c.JWTSigningKey = "0123456789abcdef0123456789abcdef"
		}, true},
		{"production fully configured", func(c *Config) {
			c.Env = "production"
			c.JWTSigningKey = "0123456789abcdef0123456789abcdef"
			c.DatabaseURL = "postgres://db"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(
		"CONSENT_ADDR: \":9090\"\nDIRECTORY_CACHE: none\nCONSENT_TX_TIMEOUT: 2s\n"), 0o600))
	t.Setenv("DIRECTORY_CACHE", " MEMORY ")
	t.Setenv("DIRECTORY_CACHE_TTL", "30s")

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, CacheMemory, cfg.DirectoryCache)
	assert.Equal(t, 30*time.Second, cfg.DirectoryCacheTTL)
	assert.Equal(t, 2*time.Second, cfg.ConsentTxTimeout)
	assert.Equal(t, "consent.audit.entries", cfg.AuditTopic)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	v := viper.New()
	v.AddConfigPath(t.TempDir())
	v.SetConfigName("config")
	v.SetConfigType("yml")
	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ConsentTxTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.OutboxPollInterval)
	assert.False(t, cfg.IsProduction())
}
