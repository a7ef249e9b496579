package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-orders/internal/config"
)

const sampleYAML = `
app:
  port: "9090"
postgres:
  host: db.internal
  port: "5432"
  user: orders
  password: secret
  dbname: storefront
redis:
  addr: localhost:6379
auth:
  jwt_secret: from-file
invoice:
  business_name: Threadcraft Apparel
  gstin: 27ABCDE1234F1Z5
  address_lines:
    - 12 MG Road
    - Pune 411001
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode, "default sslmode should survive the file")
	assert.Equal(t, "orders:recent", cfg.Redis.RecentOrdersKey)
	assert.Equal(t, "ORD", cfg.Orders.NumberPrefix)
	assert.Equal(t, []string{"12 MG Road", "Pune 411001"}, cfg.Invoice.AddressLines)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("APP_PORT", "7070")
	t.Setenv("REDIS_DB", "3")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "7070", cfg.App.Port)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_MissingRequired(t *testing.T) {
	path := writeConfig(t, `
postgres:
  host: db.internal
invoice:
  business_name: Threadcraft Apparel
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT is required")
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("REDIS_DB", "zero")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}
