package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compliance.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Zero(t, cfg.Verification.CodeTTL)
	assert.Equal(t, 8, cfg.Verification.Concurrency)
	assert.False(t, cfg.IsProduction())
}

func TestFileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
public_base_url = "https://desk.example.com"

[database]
dsn = "postgres://file"

[verification]
code_ttl = "72h"

[kafka]
brokers = ["k1:9092"]
`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://desk.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, 72*time.Hour, cfg.Verification.CodeTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestMalformedEnvironment(t *testing.T) {
	t.Setenv("VERIFICATION_CODE_TTL", "three days")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERIFICATION_CODE_TTL")
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin token hash")
	assert.Contains(t, err.Error(), "portal key")
	assert.Contains(t, err.Error(), "database dsn")

	t.Setenv("ADMIN_TOKEN_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("PORTAL_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_URL", "postgres://prod")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
