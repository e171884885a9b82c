// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/repository"
	"pedia-assist-go/internal/retrieval"
	"pedia-assist-go/pkg/log"

	"gorm.io/gorm"
)

// ChatService 定义了问答编排的接口。
type ChatService interface {
	// ProcessQuery 保存用户消息，检索、排序、引用并生成回答，保存助手消息后返回。
	// 任何持久化或检索失败都会使整个调用失败，不做内部重试。
	ProcessQuery(ctx context.Context, sessionID, text string) (*model.ChatResponse, error)
}

// ChatOptions 是问答编排的可调参数。
type ChatOptions struct {
	Retrieval    config.RetrievalConfig
	MaxCitations int
	// Clock 为空时使用毫秒精度的 UTC 当前时间。
	Clock func() time.Time
}

type chatService struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	matcher     *retrieval.LexicalMatcher
	ranker      *retrieval.Ranker
	composer    Composer
	opts        ChatOptions
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	matcher *retrieval.LexicalMatcher,
	ranker *retrieval.Ranker,
	composer Composer,
	opts ChatOptions,
) ChatService {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
	}
	return &chatService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		matcher:     matcher,
		ranker:      ranker,
		composer:    composer,
		opts:        opts,
	}
}

func (s *chatService) ProcessQuery(ctx context.Context, sessionID, text string) (*model.ChatResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSessionID
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.sessionRepo.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	// 用户消息与助手消息共用同一个时间戳
	now := s.opts.Clock()

	log.Infof("[ChatService] 步骤1: 保存用户消息, session: %s", sessionID)
	if _, err := s.messageRepo.Append(ctx, sessionID, model.RoleUser, text, nil, now); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", notFoundAsSession(err))
	}

	log.Infof("[ChatService] 步骤2: 词项匹配, query: '%s'", text)
	_, candidates, err := s.matcher.Match(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to gather candidates: %w", err)
	}

	log.Infof("[ChatService] 步骤3: 相关性排序, 候选数: %d", len(candidates))
	results, err := s.ranker.Rank(ctx, text, candidates, rankOptions(s.opts.Retrieval))
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}

	cited := retrieval.BuildCitations(limitResults(results, s.opts.MaxCitations))
	log.Infof("[ChatService] 步骤4: 生成回答, 结果数: %d, 引用数: %d", len(results), len(cited))
	content, err := s.composer.Compose(ctx, text, cited)
	if err != nil {
		return nil, fmt.Errorf("failed to compose answer: %w", err)
	}

	log.Infof("[ChatService] 步骤5: 保存助手消息, session: %s", sessionID)
	assistant, err := s.messageRepo.Append(ctx, sessionID, model.RoleAssistant, content, retrieval.Citations(cited), now)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", notFoundAsSession(err))
	}

	return &model.ChatResponse{Message: assistant, Sources: results}, nil
}

// rankOptions 将检索配置转换为一次排序的参数。
func rankOptions(cfg config.RetrievalConfig) retrieval.RankOptions {
	return retrieval.RankOptions{
		Threshold: cfg.SimilarityThreshold,
		Limit:     cfg.ResultLimit,
		Quota: retrieval.KindQuota{
			Chunks:    cfg.ChunkQuota,
			Resources: cfg.ResourceQuota,
		},
	}
}

// limitResults 取前 max 条，max <= 0 表示全部。
func limitResults(results []model.SearchResult, max int) []model.SearchResult {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}
