// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pedia-assist-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository 定义了聊天会话的操作接口。
type SessionRepository interface {
	Create(ctx context.Context, session *model.ChatSession) error
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error)
	UpdateTitle(ctx context.Context, id, title string, at time.Time) (*model.ChatSession, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository 定义了聊天消息的操作接口。
// Append 负责串行化同一会话内的追加，并保证时间戳单调不减。
type MessageRepository interface {
	Append(ctx context.Context, sessionID string, role model.MessageRole, content string, citations []model.Citation, at time.Time) (*model.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByID 未找到时返回 gorm.ErrRecordNotFound。
func (r *sessionRepository) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByUser 按最近更新时间倒序返回用户的全部会话。
func (r *sessionRepository) ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) UpdateTitle(ctx context.Context, id, title string, at time.Time) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			return err
		}
		session.Title = title
		session.UpdatedAt = at
		// map 形式的更新不会被 GORM 的自动更新时间覆盖
		return tx.Model(&model.ChatSession{}).Where("id = ?", id).
			Updates(map[string]interface{}{"title": title, "updated_at": at}).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete 在同一事务中删除会话及其全部消息。
func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete session messages: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.ChatSession{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Append 在一个事务内完成：锁定会话行、分配 seq、修正时间戳、写入消息并刷新会话更新时间。
// 会话行上的 SELECT ... FOR UPDATE 让同一会话的并发追加排队执行，seq 在锁内读取。
func (r *messageRepository) Append(ctx context.Context, sessionID string, role model.MessageRole, content string, citations []model.Citation, at time.Time) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Citations: citations,
		CreatedAt: at,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", sessionID).First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("session %s: %w", sessionID, gorm.ErrRecordNotFound)
			}
			return err
		}

		var last model.ChatMessage
		if err := tx.Where("session_id = ?", sessionID).Order("seq DESC").Limit(1).Find(&last).Error; err != nil {
			return err
		}
		msg.Seq = last.Seq + 1
		if last.ID != "" && msg.CreatedAt.Before(last.CreatedAt) {
			msg.CreatedAt = last.CreatedAt
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.ChatSession{}).Where("id = ?", sessionID).Update("updated_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListBySession 按 (created_at, seq) 升序返回会话内的消息。
func (r *messageRepository) ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, seq ASC").
		Find(&messages).Error
	return messages, err
}
