// Package testutil 提供仓储层测试共用的内存数据库。
package testutil

import (
	"testing"

	"pedia-assist-go/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 返回一个已完成迁移的独立内存 SQLite 数据库。
// 连接数限制为 1，保证 :memory: 库在整个测试内是同一个实例。
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		tb.Fatalf("failed to migrate: %v", err)
	}
	return db
}
