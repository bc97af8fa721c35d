package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_DSN", "DB_POOL_MAX_CONNS"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, 5432, cfg.Port)
	assert.EqualValues(t, 4, cfg.MaxConns)
	assert.Equal(t, "postgres://postgres:@localhost:5432/calibr8?sslmode=disable", cfg.ConnString())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_POOL_MAX_CONNS", "nope")
	t.Setenv("DB_DSN", "postgres://u:p@db/x")
	cfg := FromEnv()
	assert.Equal(t, 6543, cfg.Port)
	assert.EqualValues(t, 4, cfg.MaxConns)
	assert.Equal(t, "postgres://u:p@db/x", cfg.ConnString())
	assert.Equal(t, "postgres (DB_DSN)", cfg.String())
}

func TestSQLiteTagWriter(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, SQLitePath: "file:tagwriter?mode=memory&cache=shared"}
	d, err := Open(cfg)
	require.NoError(t, err)
	defer d.Close()

	w, closeFn, err := d.TagWriter(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &GormTagWriter{}, w)

	_, err = Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, errPoolSQLite)
}
