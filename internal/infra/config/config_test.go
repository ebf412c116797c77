package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9000"
auth:
  secret: from-file
cache:
  statusTtl: 2h
predictor:
  baseUrl: http://predictor:7777
  defaultPlateletCount: 95
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("AUTH_SECRET", "from-env")
	t.Setenv("HTTP_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTP.Address)
	require.Equal(t, "from-env", cfg.Auth.Secret)
	require.Equal(t, 2*time.Hour, cfg.Cache.StatusTTL)
	require.Equal(t, "http://predictor:7777", cfg.Predictor.BaseURL)
	require.Equal(t, 95.0, cfg.Predictor.DefaultPlateletCount)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	require.Equal(t, "/ml/predict", cfg.Predictor.Path)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("FEVERTRACK_TEST_SQLITE=/tmp/fever.db\n"), 0o600))
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("AUTH_SECRET", "s")
	t.Setenv("SQLITE_PATH", "")
	t.Cleanup(func() { os.Unsetenv("FEVERTRACK_TEST_SQLITE") })

	_, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/fever.db", os.Getenv("FEVERTRACK_TEST_SQLITE"))

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Auth.Secret = "secret"
		return cfg
	}
	require.NoError(t, base().Validate())

	tests := map[string]func(*Config){
		"missing auth":             func(c *Config) { c.Auth.Secret = "" },
		"oidc without id":          func(c *Config) { c.Auth.OIDCIssuer = "https://issuer.example" },
		"redis without addr":       func(c *Config) { c.Cache.Redis.Enabled = true },
		"alerts without addr":      func(c *Config) { c.Alerts.Redis.Enabled = true },
		"archive without endpoint": func(c *Config) { c.Archive.Enabled = true },
		"bad rate limit":           func(c *Config) { c.HTTP.RateLimit.Burst = 0 },
		"empty address":            func(c *Config) { c.HTTP.Address = "" },
		"platelets per microlitre": func(c *Config) { c.Predictor.DefaultPlateletCount = 150000 },
		"zero platelets":           func(c *Config) { c.Predictor.DefaultPlateletCount = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
