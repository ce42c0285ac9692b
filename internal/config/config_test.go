package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Server.ParsedShutdown)
	assert.Zero(t, cfg.Reconcile.ParsedInterval)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9000
storage:
  driver: memory
logging:
  level: debug
quotes:
  base_url: http://localhost:8000
  timeout: 2s
reconcile:
  interval: 1m
  on_startup: true
`)
	writeFile(t, dir, ".env", "LEDGER_LOG_LEVEL=warn\n")
	t.Setenv("LEDGER_PORT", "9100")
	t.Cleanup(func() { os.Unsetenv("LEDGER_LOG_LEVEL") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:8000", cfg.Quotes.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Quotes.ParsedTimeout)
	assert.Equal(t, time.Minute, cfg.Reconcile.ParsedInterval)
	assert.True(t, cfg.Reconcile.OnStartup)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "bad_driver.yaml", "storage:\n  driver: mongo\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeFile(t, dir, "bad_interval.yaml", "reconcile:\n  interval: soon\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_DriverAliases(t *testing.T) {
	dir := t.TempDir()

	for alias, want := range map[string]string{
		"sqlite3":    "sqlite",
		"postgresql": "postgres",
		"pgx":        "postgres",
		"Memory":     "memory",
	} {
		t.Run(alias, func(t *testing.T) {
			path := writeFile(t, dir, alias+".yaml", "storage:\n  driver: "+alias+"\n")
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, cfg.Storage.Driver)
		})
	}
}

func TestLoad_DatabaseURLForPostgresAlias(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "storage:\n  driver: postgresql\n")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/ledger")
	t.Setenv("LEDGER_DB_DSN", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://ledger@localhost/ledger", cfg.Storage.DSN)
}
