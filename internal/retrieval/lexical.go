// Package retrieval 实现检索与引用流水线：词项匹配、相关性排序与引用构建。
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/pkg/log"
)

// stopWords 是常见的短功能词，长度 <= 2 的词已在前一步被丢弃。
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {}, "day": {},
	"get": {}, "has": {}, "him": {}, "his": {}, "how": {}, "man": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "boy": {}, "did": {}, "its": {},
	"let": {}, "put": {}, "say": {}, "she": {}, "too": {}, "use": {},
	"what": {}, "with": {}, "this": {}, "that": {}, "from": {}, "about": {}, "when": {},
	"which": {}, "does": {}, "into": {}, "than": {}, "then": {}, "them": {}, "they": {},
	"have": {}, "were": {}, "will": {}, "your": {},
}

// ExtractTerms 从查询中提取显著词项：转小写、按空白切分、去掉首尾标点、
// 丢弃长度 <= 2 的词与停用词，并按首次出现顺序去重。
func ExtractTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(t) <= 2 {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// MatchedTerms 统计出现在条目正文或标题类字段中的词项数量。
func MatchedTerms(entry model.CorpusEntry, terms []string) int {
	text := entry.SearchableText()
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

// CandidateSource 是语料存储对匹配器暴露的最小接口。
type CandidateSource interface {
	ListCandidatesByTerms(ctx context.Context, terms []string, limitPerKind int) ([]model.CorpusEntry, error)
}

// LexicalMatcher 根据查询词项从语料存储中筛选候选条目，不做排序。
type LexicalMatcher struct {
	source       CandidateSource
	limitPerKind int
}

// NewLexicalMatcher 创建匹配器。limitPerKind <= 0 表示排序前不截断。
func NewLexicalMatcher(source CandidateSource, limitPerKind int) *LexicalMatcher {
	return &LexicalMatcher{source: source, limitPerKind: limitPerKind}
}

// Match 返回查询的显著词项与候选集合。
// 没有显著词项时直接返回空集合，不访问存储。存储错误原样向上传递。
func (m *LexicalMatcher) Match(ctx context.Context, query string) ([]string, []model.CorpusEntry, error) {
	terms := ExtractTerms(query)
	if len(terms) == 0 {
		log.Infof("[LexicalMatcher] 查询无显著词项, 跳过语料扫描, query: '%s'", query)
		return terms, []model.CorpusEntry{}, nil
	}

	entries, err := m.source.ListCandidatesByTerms(ctx, terms, m.limitPerKind)
	if err != nil {
		return terms, nil, fmt.Errorf("list candidates: %w", err)
	}

	// 存储后端（例如 ES 分词检索）可能多召回，这里按子串规则再校验一次并按 ID 去重。
	seen := make(map[string]struct{}, len(entries))
	candidates := make([]model.CorpusEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID()]; dup {
			continue
		}
		if MatchedTerms(e, terms) == 0 {
			continue
		}
		seen[e.ID()] = struct{}{}
		candidates = append(candidates, e)
	}
	log.Infof("[LexicalMatcher] 词项: %v, 候选条目 %d 个", terms, len(candidates))
	return terms, candidates, nil
}
