package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("LOCAL_SETTINGS", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "80", cfg.Port)
	assert.Equal(t, "0.0.0.0:80", cfg.Addr())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.Debug)
	// Debug mode falls back to the development secret
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("ALLOWED_HOSTS", "example.com, api.example.com")
	t.Setenv("SESSION_TTL_HOURS", "24")
	t.Setenv("LOCAL_SETTINGS", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, []string{"example.com", "api.example.com"}, cfg.AllowedHosts)
	assert.Equal(t, float64(24), cfg.SessionTTL.Hours())
	assert.Contains(t, cfg.DB.DSN(), "password=secret")
}

func TestJWTSecretRequiredOutsideDebug(t *testing.T) {
	t.Setenv("DEBUG", "false")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOCAL_SETTINGS", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestUnsupportedDriverRejected(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("LOCAL_SETTINGS", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLocalOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.yaml")
	override := "debug: true\nallowedHosts:\n  - internal.example.com\ncorsOrigins:\n  - https://app.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	t.Setenv("DEBUG", "false")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("ALLOWED_HOSTS", "example.com")
	t.Setenv("LOCAL_SETTINGS", path)

	cfg, err := Load()
	require.NoError(t, err)

	// The local file wins over the environment
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"internal.example.com"}, cfg.AllowedHosts)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestLocalOverrideMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: [not a bool"), 0o644))

	t.Setenv("DEBUG", "true")
	t.Setenv("LOCAL_SETTINGS", path)

	_, err := Load()
	assert.Error(t, err)
}
