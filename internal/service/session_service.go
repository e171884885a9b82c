package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/repository"
	"pedia-assist-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService 定义了聊天会话与消息历史的业务逻辑接口。
type SessionService interface {
	Create(ctx context.Context, userID, title string) (*model.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error)
	Get(ctx context.Context, id string) (*model.ChatSession, error)
	Rename(ctx context.Context, id, title string) (*model.ChatSession, error)
	Delete(ctx context.Context, id string) error
	ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	// AppendMessage 手动追加一条消息。用户消息不携带引用。
	AppendMessage(ctx context.Context, sessionID string, role model.MessageRole, content string, citations []model.Citation) (*model.ChatMessage, error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	clock       func() time.Time
}

// NewSessionService 创建一个新的 SessionService。
func NewSessionService(sessionRepo repository.SessionRepository, messageRepo repository.MessageRepository) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		clock:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *sessionService) Create(ctx context.Context, userID, title string) (*model.ChatSession, error) {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	now := s.clock()
	session := &model.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Infof("[SessionService] 创建会话成功, id: %s, user: %s", session.ID, userID)
	return session, nil
}

func (s *sessionService) ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	return sessions, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidSessionID
	}
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAsSession(err)
	}
	return session, nil
}

func (s *sessionService) Rename(ctx context.Context, id, title string) (*model.ChatSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidSessionID
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	session, err := s.sessionRepo.UpdateTitle(ctx, id, title, s.clock())
	if err != nil {
		return nil, notFoundAsSession(err)
	}
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidSessionID
	}
	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		return notFoundAsSession(err)
	}
	log.Infof("[SessionService] 删除会话及其消息, id: %s", id)
	return nil
}

func (s *sessionService) ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	return messages, nil
}

func (s *sessionService) AppendMessage(ctx context.Context, sessionID string, role model.MessageRole, content string, citations []model.Citation) (*model.ChatMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSessionID
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	switch role {
	case model.RoleUser:
		citations = nil
	case model.RoleAssistant:
		if len(citations) == 0 {
			citations = nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	msg, err := s.messageRepo.Append(ctx, sessionID, role, content, citations, s.clock())
	if err != nil {
		return nil, notFoundAsSession(err)
	}
	return msg, nil
}

func notFoundAsSession(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionNotFound
	}
	return err
}
