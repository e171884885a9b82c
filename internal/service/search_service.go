// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/retrieval"
	"pedia-assist-go/pkg/log"
)

const (
	DefaultSearchLimit     = 10
	DefaultSearchThreshold = 0.7
	maxSearchLimit         = 100
)

// SearchService 接口定义了搜索操作。
type SearchService interface {
	// SemanticSearch 直接暴露词项匹配与相关性排序，不写入任何会话。
	SemanticSearch(ctx context.Context, query string, limit int, threshold float64) ([]model.SearchResult, error)
}

type searchService struct {
	matcher *retrieval.LexicalMatcher
	ranker  *retrieval.Ranker
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(matcher *retrieval.LexicalMatcher, ranker *retrieval.Ranker) SearchService {
	return &searchService{matcher: matcher, ranker: ranker}
}

// SemanticSearch 的结果预算在两种条目之间对半分配，未用完的名额按排序顺序补齐。
func (s *searchService) SemanticSearch(ctx context.Context, query string, limit int, threshold float64) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > maxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxSearchLimit)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: similarity_threshold must be within [0,1]", ErrInvalidInput)
	}
	log.Infof("[SearchService] 开始执行语义搜索, query: '%s', limit: %d, threshold: %.2f", query, limit, threshold)

	_, candidates, err := s.matcher.Match(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to gather candidates: %w", err)
	}
	results, err := s.ranker.Rank(ctx, query, candidates, retrieval.RankOptions{
		Threshold: threshold,
		Limit:     limit,
		Quota:     retrieval.KindQuota{Chunks: limit - limit/2, Resources: limit / 2},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}
	log.Infof("[SearchService] 语义搜索执行完毕, 返回 %d 条结果", len(results))
	return results, nil
}
