package dbopconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokha/dbop-core/pkg/dbopconfig"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigValid(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
database:
  dialect: postgres
  host: localhost
  port: 5432
  user: app
  password: secret
  dbname: appdb
  max_open_conns: 10
  max_idle_conns: 2
  conn_max_lifetime: 30m
retry:
  max_retries: 3
  initial_delay: 100ms
  max_delay: 1s
  jitter: 0.2
telemetry:
  enabled: true
  metrics_enabled: false
  service_version: "1.2.3"
logging:
  level: debug
  format: json
  add_source: true
`)

	cfg, err := dbopconfig.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Duration(100*time.Millisecond), time.Duration(cfg.Retry.InitialDelay))
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "1.2.3", cfg.Telemetry.ServiceVersion)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
database:
  dialect: sqlite3
  dbname: ":memory:"
surprise_field: true
`)

	_, err := dbopconfig.LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsInvalidDialect(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
database:
  dialect: oracle
  dbname: appdb
`)

	_, err := dbopconfig.LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsBadRetryWindow(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
database:
  dialect: sqlite3
  dbname: ":memory:"
retry:
  max_retries: 3
  initial_delay: 1s
  max_delay: 500ms
  jitter: 0.2
`)

	_, err := dbopconfig.LoadConfig(path)
	require.Error(t, err)
}

func TestGetDatabaseConfig(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
database:
  dialect: sqlite3
  dbname: ":memory:"
`)
	cfg, err := dbopconfig.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, &cfg.Database, cfg.GetDatabaseConfig())
}
