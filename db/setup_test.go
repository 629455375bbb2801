package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLConfig(t *testing.T) {
	cfg, err := mysqlConfig("silentsos:secret@tcp(db:3306)/silentsos?charset=utf8mb4")
	require.NoError(t, err)

	assert.Equal(t, "silentsos", cfg.User)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "silentsos", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)

	_, err = mysqlConfig("not a dsn")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	_, err := Open("oracle", "")
	assert.ErrorContains(t, err, "unsupported database driver")

	conn, err := Open("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	assert.True(t, conn.Migrator().HasTable("alerts"))
	assert.True(t, conn.Migrator().HasTable("alert_validations"))
}
