package database

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/model"
)

func TestDialectorFor(t *testing.T) {
	for _, driver := range []string{"", "postgres", "mysql"} {
		d, err := dialectorFor(&config.DatabaseConfig{Driver: driver, Host: "localhost", Port: 5432, Database: "sage"})
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := dialectorFor(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSSLMode(t *testing.T) {
	assert.Equal(t, "disable", sslMode(""))
	assert.Equal(t, "require", sslMode("require"))
}

func TestMigrate_NonPostgresUsesAutoMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db, "sqlite"))
	for _, m := range model.All() {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedis(&config.RedisConfig{Host: mr.Host(), Port: atoi(t, mr.Port())})
	require.NoError(t, err)
	defer rdb.Close()

	mr.Close()
	_, err = NewRedis(&config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
