// Package testdb opens a migrated SQLite database for package tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mes.GO/model/entity"
)

// Open returns a fresh file-backed SQLite database with the full MES schema.
// A file (not :memory:) keeps every pooled connection on the same data.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db := OpenEmpty(t, "mes.db")
	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// OpenEmpty opens an unmigrated database file named name inside the test's temp dir.
func OpenEmpty(t testing.TB, name string) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
