package testutil

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs3c/sage_server/internal/model"
)

// SetupTestDB 创建已建表的 SQLite 内存账本
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := open(t, sqlite.Open(":memory:"))

	// 内存库按连接隔离，必须单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return migrated(t, db)
}

// SetupPostgresTestDB 连接 TEST_DATABASE_DSN 指向的 Postgres，未设置时跳过
func SetupPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping Postgres tests")
	}

	db := migrated(t, open(t, postgres.Open(dsn)))
	t.Cleanup(func() {
		for _, m := range model.All() {
			db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m)
		}
	})
	return db
}

func open(t *testing.T, dialector gorm.Dialector) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}
	return db
}

func migrated(t *testing.T, db *gorm.DB) *gorm.DB {
	t.Helper()

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CleanupTestDB 关闭测试数据库连接
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close test database: %v", err)
	}
}
