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

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Predictor PredictorConfig `yaml:"predictor"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	CORSOrigins  []string        `yaml:"corsOrigins"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	Retry        RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	Secret       string        `yaml:"secret"`
	TokenTTL     time.Duration `yaml:"tokenTtl"`
	OIDCIssuer   string        `yaml:"oidcIssuer"`
	OIDCClientID string        `yaml:"oidcClientId"`
}

// StorageConfig selects the episode store. Postgres wins over SQLite; with
// neither set episodes live in memory.
type StorageConfig struct {
	Postgres   PostgresConfig `yaml:"postgres"`
	SQLitePath string         `yaml:"sqlitePath"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// RedisConfig contains connection information for Valkey/Redis.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// CacheConfig controls the status cache.
type CacheConfig struct {
	Redis     RedisConfig   `yaml:"redis"`
	StatusTTL time.Duration `yaml:"statusTtl"`
	Prefix    string        `yaml:"prefix"`
}

// AlertsConfig controls alert delivery and the clinician inbox.
type AlertsConfig struct {
	Redis       RedisConfig `yaml:"redis"`
	Channel     string      `yaml:"channel"`
	Prefix      string      `yaml:"prefix"`
	RecentLimit int         `yaml:"recentLimit"`
	MaxAlerts   int         `yaml:"maxAlerts"`
}

// PredictorConfig points at the external disease classifier. An empty base URL disables it.
// DefaultPlateletCount is in thousands per microlitre.
type PredictorConfig struct {
	BaseURL              string        `yaml:"baseUrl"`
	Path                 string        `yaml:"path"`
	Token                string        `yaml:"token"`
	Timeout              time.Duration `yaml:"timeout"`
	DefaultPlateletCount float64       `yaml:"defaultPlateletCount"`
}

// ArchiveConfig controls where resolved episodes are archived.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// Load reads configuration from a YAML file, an optional .env file and
// environment variables, in that order of precedence (last wins).
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadDotEnv populates unset environment variables from a dotenv file.
// A missing default .env is fine; a missing explicit ENV_FILE is not.
func loadDotEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setDuration(&cfg.HTTP.ReadTimeout, "HTTP_READ_TIMEOUT")
	setDuration(&cfg.HTTP.WriteTimeout, "HTTP_WRITE_TIMEOUT")
	if v := os.Getenv("HTTP_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")

	setString(&cfg.Auth.Secret, "AUTH_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "AUTH_TOKEN_TTL")
	setString(&cfg.Auth.OIDCIssuer, "AUTH_OIDC_ISSUER")
	setString(&cfg.Auth.OIDCClientID, "AUTH_OIDC_CLIENT_ID")

	setString(&cfg.Storage.Postgres.DSN, "POSTGRES_DSN")
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Postgres.MinConns = int32(parsed)
		}
	}
	setString(&cfg.Storage.SQLitePath, "SQLITE_PATH")

	setBool(&cfg.Cache.Redis.Enabled, "CACHE_REDIS_ENABLED")
	setString(&cfg.Cache.Redis.Addr, "CACHE_REDIS_ADDR")
	setDuration(&cfg.Cache.StatusTTL, "CACHE_STATUS_TTL")
	setString(&cfg.Cache.Prefix, "CACHE_PREFIX")

	setBool(&cfg.Alerts.Redis.Enabled, "ALERTS_REDIS_ENABLED")
	setString(&cfg.Alerts.Redis.Addr, "ALERTS_REDIS_ADDR")
	setString(&cfg.Alerts.Channel, "ALERTS_CHANNEL")
	setString(&cfg.Alerts.Prefix, "ALERTS_PREFIX")
	setInt(&cfg.Alerts.RecentLimit, "ALERTS_RECENT_LIMIT")
	setInt(&cfg.Alerts.MaxAlerts, "ALERTS_MAX")

	setString(&cfg.Predictor.BaseURL, "PREDICTOR_BASE_URL")
	setString(&cfg.Predictor.Path, "PREDICTOR_PATH")
	setString(&cfg.Predictor.Token, "PREDICTOR_TOKEN")
	setDuration(&cfg.Predictor.Timeout, "PREDICTOR_TIMEOUT")
	if v := os.Getenv("PREDICTOR_DEFAULT_PLATELET_COUNT"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Predictor.DefaultPlateletCount = parsed
		}
	}

	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setString(&cfg.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setString(&cfg.Archive.AccessKey, "ARCHIVE_ACCESS_KEY")
	setString(&cfg.Archive.SecretKey, "ARCHIVE_SECRET_KEY")
	setString(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&cfg.Archive.Region, "ARCHIVE_REGION")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/episodes/*/readings",
				},
			},
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Storage: StorageConfig{
			Postgres: PostgresConfig{
				MaxConns: 8,
				MinConns: 0,
			},
		},
		Cache: CacheConfig{
			StatusTTL: 24 * time.Hour,
			Prefix:    "fevertrack",
		},
		Alerts: AlertsConfig{
			Channel:     "fevertrack:alerts:live",
			Prefix:      "fevertrack",
			RecentLimit: 20,
			MaxAlerts:   500,
		},
		Predictor: PredictorConfig{
			Path:                 "/ml/predict",
			Timeout:              10 * time.Second,
			DefaultPlateletCount: 150,
		},
		Archive: ArchiveConfig{
			Bucket: "fevertrack-archive",
			Region: "auto",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.Auth.Secret) == "" && strings.TrimSpace(c.Auth.OIDCIssuer) == "" {
		return errors.New("auth.secret or auth.oidcIssuer must be set")
	}
	if c.Auth.OIDCIssuer != "" && strings.TrimSpace(c.Auth.OIDCClientID) == "" {
		return errors.New("auth.oidcClientId cannot be empty when auth.oidcIssuer is set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.tokenTtl must be positive")
	}
	if c.Cache.StatusTTL < 0 {
		return errors.New("cache.statusTtl cannot be negative")
	}
	if c.Cache.Redis.Enabled && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return errors.New("cache.redis.addr cannot be empty when redis cache is enabled")
	}
	if c.Alerts.Redis.Enabled && strings.TrimSpace(c.Alerts.Redis.Addr) == "" {
		return errors.New("alerts.redis.addr cannot be empty when redis alerts are enabled")
	}
	if c.Alerts.RecentLimit <= 0 {
		return errors.New("alerts.recentLimit must be positive")
	}
	if c.Predictor.Timeout <= 0 {
		return errors.New("predictor.timeout must be positive")
	}
	if c.Predictor.DefaultPlateletCount <= 0 || c.Predictor.DefaultPlateletCount > 2000 {
		return fmt.Errorf("predictor.defaultPlateletCount must be in thousands per microlitre (0 < x <= 2000), got %v", c.Predictor.DefaultPlateletCount)
	}
	if c.Archive.Enabled {
		if strings.TrimSpace(c.Archive.Endpoint) == "" {
			return errors.New("archive.endpoint cannot be empty when archiving is enabled")
		}
		if strings.TrimSpace(c.Archive.Bucket) == "" {
			return errors.New("archive.bucket cannot be empty when archiving is enabled")
		}
	}
	return nil
}
