package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avanzo/foodshare/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Config{
		DBUser: "avanzo",
		DBPass: "p@ss",
		DBHost: "db",
		DBPort: "3306",
		DBName: "foodshare",
	})

	mc, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "avanzo", mc.User)
	assert.Equal(t, "p@ss", mc.Passwd)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "foodshare", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.True(t, mc.ClientFoundRows)
	assert.Equal(t, time.UTC, mc.Loc)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := embedMigrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := embedMigrations.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "uq_users_active_email")
	assert.Contains(t, string(body), "uq_reservations_active_user")
}
