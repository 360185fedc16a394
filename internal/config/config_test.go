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

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	v.Set("database.driver", DriverMemory)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	_, err := Load(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workgenio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/workgenio
  lock_timeout: 2s
server:
  address: ":9090"
logging:
  level: debug
`), 0o600))

	v := viper.New()
	v.Set("config", path)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/workgenio", cfg.Database.DSN)
	assert.Equal(t, 2*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)

	opts := cfg.Database.TxOptions()
	assert.Equal(t, 2*time.Second, opts.LockTimeout)
	assert.Equal(t, 30*time.Second, opts.StatementTimeout)

	pool := cfg.Database.PoolConfig()
	assert.Equal(t, "postgres://localhost/workgenio", pool.DSN)
	assert.Equal(t, int32(5), pool.MinConns)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("WORKGENIO_DATABASE_DRIVER", "memory")
	t.Setenv("WORKGENIO_LOGGING_LEVEL", "warn")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	v.Set("database.driver", "sqlite")
	_, err := Load(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("database.driver", DriverMemory)
	v.Set("database.min_conns", 50)
	_, err = Load(v)
	assert.Error(t, err, "min_conns above max_conns")
}
