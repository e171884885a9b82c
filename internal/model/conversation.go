// Package model 包含了应用的数据模型定义。
package model

import (
	"time"

	"gorm.io/datatypes"
)

// MessageRole 是聊天消息的角色。
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Citation 是助手消息中对语料条目的引用。
// PageNumber 只对教材分块有意义，缺省时序列化中省略该字段而不是输出 null。
type Citation struct {
	Source     string `json:"source"`
	PageNumber *int   `json:"page_number,omitempty"`
	EntryID    string `json:"entry_id"`
}

// ChatSession 对应于数据库中的 'chat_sessions' 表。
type ChatSession struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 对应于数据库中的 'chat_messages' 表。
// Seq 是会话内单调递增的序号，与 CreatedAt 共同决定消息顺序。
type ChatMessage struct {
	ID        string                       `gorm:"type:varchar(64);primaryKey" json:"id"`
	SessionID string                       `gorm:"type:varchar(64);not null;uniqueIndex:idx_session_seq,priority:1" json:"session_id"`
	Seq       int64                        `gorm:"not null;uniqueIndex:idx_session_seq,priority:2" json:"seq"`
	Role      MessageRole                  `gorm:"type:varchar(16);not null" json:"role"`
	Content   string                       `gorm:"type:text;not null" json:"content"`
	Citations datatypes.JSONSlice[Citation] `json:"citations"`
	CreatedAt time.Time                    `gorm:"not null;index" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ChatResponse 是一次问答的完整返回：助手消息与全部排序后的来源。
type ChatResponse struct {
	Message *ChatMessage   `json:"message"`
	Sources []SearchResult `json:"sources"`
}
