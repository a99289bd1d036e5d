// Package config loads the portal configuration from an optional YAML file and
// PORTAL_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PORTAL_STORE_DRIVER.
const EnvPrefix = "PORTAL"

// Config is the main application configuration struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Email     EmailConfig     `mapstructure:"email"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	DatabaseURL   string `mapstructure:"database_url"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// RedisConfig is optional; an empty address disables Redis-backed components.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// AuthConfig configures passwords, sessions and password resets.
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpirationHours int           `mapstructure:"jwt_expiration_hours"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	PasswordPepper     string        `mapstructure:"password_pepper"`
	ResetTokenTTL      time.Duration `mapstructure:"reset_token_ttl"`
}

// Email providers.
const (
	EmailProviderSES = "ses"
	EmailProviderLog = "log"
)

// EmailConfig configures outbound email.
type EmailConfig struct {
	Provider         string        `mapstructure:"provider"`
	From             string        `mapstructure:"from"`
	Region           string        `mapstructure:"region"`
	PublicBaseURL    string        `mapstructure:"public_base_url"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
}

// Blob providers.
const (
	BlobProviderS3     = "s3"
	BlobProviderMemory = "memory"
)

// BlobConfig configures resume file storage.
type BlobConfig struct {
	Provider      string `mapstructure:"provider"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`
}

// ReconcileConfig schedules the counter reconciliation job. Zero disables it.
type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// RequestsPerMinute is the default per-client budget.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// AuthRequestsPerMinute applies to /auth endpoints.
	AuthRequestsPerMinute int `mapstructure:"auth_requests_per_minute"`
}

// Load reads configuration. path may be empty, in which case config.yaml is looked up in
// the working directory and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.mongo_uri", "")
	v.SetDefault("store.mongo_database", "placement_portal")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 5*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiration_hours", 24)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.password_pepper", "")
	v.SetDefault("auth.reset_token_ttl", time.Hour)

	v.SetDefault("email.provider", EmailProviderLog)
	v.SetDefault("email.from", "placements@example.com")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.public_base_url", "http://localhost:8080")
	v.SetDefault("email.dispatch_interval", 30*time.Second)
	v.SetDefault("email.batch_size", 25)
	v.SetDefault("email.max_attempts", 3)

	v.SetDefault("blob.provider", BlobProviderMemory)
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.public_base_url", "")
	v.SetDefault("blob.max_upload_mb", 5)

	v.SetDefault("reconcile.interval", time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 120)
	v.SetDefault("ratelimit.auth_requests_per_minute", 10)
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("config error: 'store.database_url' is required for the postgres driver")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return fmt.Errorf("config error: 'store.mongo_uri' and 'store.mongo_database' are required for the mongo driver")
		}
	default:
		return fmt.Errorf("config error: unknown store driver %q", c.Store.Driver)
	}

	switch c.Email.Provider {
	case EmailProviderLog:
	case EmailProviderSES:
		if c.Email.From == "" || c.Email.Region == "" {
			return fmt.Errorf("config error: 'email.from' and 'email.region' are required for ses")
		}
	default:
		return fmt.Errorf("config error: unknown email provider %q", c.Email.Provider)
	}
	if c.Email.BatchSize < 1 {
		return fmt.Errorf("config error: 'email.batch_size' must be positive")
	}
	if c.Email.MaxAttempts < 1 {
		return fmt.Errorf("config error: 'email.max_attempts' must be positive")
	}

	switch c.Blob.Provider {
	case BlobProviderMemory:
	case BlobProviderS3:
		if c.Blob.Bucket == "" {
			return fmt.Errorf("config error: 'blob.bucket' is required for s3")
		}
	default:
		return fmt.Errorf("config error: unknown blob provider %q", c.Blob.Provider)
	}
	if c.Blob.MaxUploadMB < 1 {
		return fmt.Errorf("config error: 'blob.max_upload_mb' must be positive")
	}

	if c.Reconcile.Interval < 0 {
		return fmt.Errorf("config error: 'reconcile.interval' must be non-negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute < 1 || c.RateLimit.AuthRequestsPerMinute < 1) {
		return fmt.Errorf("config error: rate limits must be positive when enabled")
	}
	return nil
}
