package model

import "gorm.io/gorm"

// AutoMigrate 创建或更新全部业务表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&TextbookChunk{},
		&ReferenceResource{},
		&ChatSession{},
		&ChatMessage{},
	)
}
