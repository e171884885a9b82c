package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/pkg/log"
)

// QueryEmbedder 将查询文本转换为向量，与语料条目的预计算向量同维度。
type QueryEmbedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// KindQuota 是结果预算在两种条目之间的分配。两项均为 0 时不启用配额。
type KindQuota struct {
	Chunks    int
	Resources int
}

// Enabled 表示是否启用按类型配额。
func (q KindQuota) Enabled() bool {
	return q.Chunks > 0 || q.Resources > 0
}

func (q KindQuota) of(kind model.EntryKind) int {
	if kind == model.EntryKindChunk {
		return q.Chunks
	}
	return q.Resources
}

// RankOptions 控制一次排序。
type RankOptions struct {
	Threshold float64
	Limit     int
	Quota     KindQuota
}

// Ranker 为候选条目打分并排序。
// 同一批候选全部带有与查询同维度的向量时使用余弦相似度，否则整批使用确定性的词项重叠评分，
// 两种分数不会在一次排序中混用。
type Ranker struct {
	embedder QueryEmbedder
}

// NewRanker 创建排序器，embedder 为 nil 时只使用词项重叠评分。
func NewRanker(embedder QueryEmbedder) *Ranker {
	return &Ranker{embedder: embedder}
}

// Rank 对候选条目打分，过滤低于阈值的条目，按 (得分降序, ID 升序) 排序，
// 再按类型配额选取不超过 Limit 条结果。
//
// 配额规则：先按排序顺序为每种类型选取至多其配额数量的条目，
// 预算未用完时再按排序顺序补齐剩余条目，最终结果重新按排序规则排列。
func (r *Ranker) Rank(ctx context.Context, query string, candidates []model.CorpusEntry, opts RankOptions) ([]model.SearchResult, error) {
	if len(candidates) == 0 || opts.Limit <= 0 {
		return []model.SearchResult{}, nil
	}
	tau := clamp01(opts.Threshold)
	terms := ExtractTerms(query)

	var queryVec []float32
	if r.embedder != nil && allEmbedded(candidates) {
		vec, err := r.embedder.CreateEmbedding(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if dims := uniformDims(candidates); dims == len(vec) {
			queryVec = vec
		} else {
			log.Warnf("[Ranker] 查询向量维度 %d 与候选向量维度 %d 不一致, 整批退回词项评分", len(vec), dims)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	scored := make([]model.SearchResult, 0, len(candidates))
	for _, e := range candidates {
		id := e.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		score := scoreEntry(queryVec, terms, e, tau)
		if score < tau {
			continue
		}
		scored = append(scored, model.SearchResult{Entry: e, Score: score})
	}
	sortResults(scored)

	selected := selectWithQuota(scored, opts.Limit, opts.Quota)
	log.Infof("[Ranker] 候选 %d 个, 通过阈值 %.2f 的 %d 个, 返回 %d 个 (vector=%t)",
		len(candidates), tau, len(scored), len(selected), len(queryVec) > 0)
	return selected, nil
}

func scoreEntry(queryVec []float32, terms []string, e model.CorpusEntry, tau float64) float64 {
	if len(queryVec) > 0 {
		// 零向量按正交处理
		cos, _ := Cosine(queryVec, e.Embedding())
		return CosineScore(cos)
	}
	return LexicalScore(terms, e, tau)
}

// Cosine 计算两个向量的余弦相似度。维度不一致或存在零向量时 ok 为 false。
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// CosineScore 将 [-1,1] 的余弦值单调映射到 [0,1]。
func CosineScore(cos float64) float64 {
	return clamp01((cos + 1) / 2)
}

// LexicalScore 是无向量时的确定性评分：命中词项比例线性映射到 [tau,1]。
// 一个词项都没命中的条目得 0 分。
func LexicalScore(terms []string, e model.CorpusEntry, tau float64) float64 {
	if len(terms) == 0 {
		return 0
	}
	matched := MatchedTerms(e, terms)
	if matched == 0 {
		return 0
	}
	frac := float64(matched) / float64(len(terms))
	return clamp01(tau + (1-tau)*frac)
}

func selectWithQuota(sorted []model.SearchResult, limit int, quota KindQuota) []model.SearchResult {
	if !quota.Enabled() {
		if len(sorted) > limit {
			sorted = sorted[:limit]
		}
		return sorted
	}

	picked := make([]bool, len(sorted))
	perKind := make(map[model.EntryKind]int, 2)
	out := make([]model.SearchResult, 0, limit)
	for i, res := range sorted {
		if len(out) >= limit {
			break
		}
		if perKind[res.Entry.Kind] < quota.of(res.Entry.Kind) {
			perKind[res.Entry.Kind]++
			picked[i] = true
			out = append(out, res)
		}
	}
	for i, res := range sorted {
		if len(out) >= limit {
			break
		}
		if !picked[i] {
			out = append(out, res)
		}
	}
	sortResults(out)
	return out
}

func sortResults(results []model.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.ID() < results[j].Entry.ID()
	})
}

func allEmbedded(entries []model.CorpusEntry) bool {
	for _, e := range entries {
		if len(e.Embedding()) == 0 {
			return false
		}
	}
	return true
}

// uniformDims 返回候选向量的公共维度，维度不一致时返回 -1。
func uniformDims(entries []model.CorpusEntry) int {
	dims := len(entries[0].Embedding())
	for _, e := range entries[1:] {
		if len(e.Embedding()) != dims {
			return -1
		}
	}
	return dims
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
