package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/internal/model"
)

func ids(results []model.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entry.ID()
	}
	return out
}

func TestRanker_LexicalScoring(t *testing.T) {
	r := NewRanker(nil)
	candidates := []model.CorpusEntry{feverResource(), asthmaChunk()}

	results, err := r.Rank(context.Background(), "asthma management in children", candidates,
		RankOptions{Threshold: 0.5, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "chunk-resp-1", results[0].Entry.ID())
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "res-fever-1", results[1].Entry.ID())
	assert.InDelta(t, 0.5+0.5/3, results[1].Score, 1e-9)
}

func TestRanker_ThresholdAndBounds(t *testing.T) {
	r := NewRanker(nil)
	candidates := []model.CorpusEntry{
		asthmaChunk(),
		feverResource(),
		chunkWith("chunk-none", "Neonatal jaundice overview.", nil),
	}

	for _, tau := range []float64{0.3, 0.5, 0.9, 1} {
		results, err := r.Rank(context.Background(), "asthma management in children", candidates,
			RankOptions{Threshold: tau, Limit: 10})
		require.NoError(t, err)
		for _, res := range results {
			assert.GreaterOrEqual(t, res.Score, tau)
			assert.LessOrEqual(t, res.Score, 1.0)
		}
		assert.NotContains(t, ids(results), "chunk-none")
	}
}

func TestRanker_TieBreakByID(t *testing.T) {
	r := NewRanker(nil)
	candidates := []model.CorpusEntry{
		chunkWith("chunk-b", "croup treatment", nil),
		chunkWith("chunk-c", "croup treatment", nil),
		chunkWith("chunk-a", "croup treatment", nil),
	}

	results, err := r.Rank(context.Background(), "croup treatment", candidates, RankOptions{Threshold: 0.5, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk-a", "chunk-b", "chunk-c"}, ids(results))
}

func TestRanker_Deterministic(t *testing.T) {
	r := NewRanker(nil)
	candidates := []model.CorpusEntry{
		feverResource(),
		asthmaChunk(),
		chunkWith("chunk-2", "children with fever", nil),
		resourceWith("res-2", "asthma action plan for children", nil),
	}
	opts := RankOptions{Threshold: 0.4, Limit: 3, Quota: KindQuota{Chunks: 2, Resources: 1}}

	first, err := r.Rank(context.Background(), "asthma fever children", candidates, opts)
	require.NoError(t, err)
	second, err := r.Rank(context.Background(), "asthma fever children", candidates, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRanker_LimitAndEmpty(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1, 0}}
	r := NewRanker(emb)

	results, err := r.Rank(context.Background(), "asthma", nil, RankOptions{Threshold: 0.5, Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 0, emb.calls)

	results, err = r.Rank(context.Background(), "asthma", []model.CorpusEntry{asthmaChunk()}, RankOptions{Threshold: 0.5, Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRanker_Quota(t *testing.T) {
	r := NewRanker(nil)
	var candidates []model.CorpusEntry
	for i := 1; i <= 5; i++ {
		candidates = append(candidates, chunkWith(fmt.Sprintf("chunk-%d", i), "bronchiolitis wheezing", nil))
	}
	// 资源只命中一个词项，得分低于所有分块
	candidates = append(candidates,
		resourceWith("res-1", "bronchiolitis checklist", nil),
		resourceWith("res-2", "bronchiolitis scoring", nil),
	)
	query := "bronchiolitis wheezing"

	t.Run("reserves slots per kind", func(t *testing.T) {
		results, err := r.Rank(context.Background(), query, candidates,
			RankOptions{Threshold: 0.5, Limit: 5, Quota: KindQuota{Chunks: 3, Resources: 2}})
		require.NoError(t, err)
		assert.Equal(t, []string{"chunk-1", "chunk-2", "chunk-3", "res-1", "res-2"}, ids(results))
	})

	t.Run("backfills unused quota in rank order", func(t *testing.T) {
		results, err := r.Rank(context.Background(), query, candidates[:6],
			RankOptions{Threshold: 0.5, Limit: 5, Quota: KindQuota{Chunks: 3, Resources: 2}})
		require.NoError(t, err)
		assert.Equal(t, []string{"chunk-1", "chunk-2", "chunk-3", "chunk-4", "res-1"}, ids(results))
	})

	t.Run("disabled quota is plain top-n", func(t *testing.T) {
		results, err := r.Rank(context.Background(), query, candidates,
			RankOptions{Threshold: 0.5, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, []string{"chunk-1", "chunk-2", "chunk-3", "chunk-4", "chunk-5"}, ids(results))
	})

	t.Run("limit below quota total", func(t *testing.T) {
		results, err := r.Rank(context.Background(), query, candidates,
			RankOptions{Threshold: 0.5, Limit: 2, Quota: KindQuota{Chunks: 3, Resources: 2}})
		require.NoError(t, err)
		assert.Equal(t, []string{"chunk-1", "chunk-2"}, ids(results))
	})
}

func TestRanker_VectorScoring(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1, 0}}
	r := NewRanker(emb)
	candidates := []model.CorpusEntry{
		chunkWith("chunk-same", "asthma inhaler technique", []float32{1, 0}),
		chunkWith("chunk-orth", "asthma triggers", []float32{0, 1}),
		chunkWith("chunk-zero", "asthma education", []float32{0, 0}),
	}

	results, err := r.Rank(context.Background(), "asthma", candidates, RankOptions{Threshold: 0.5, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
	require.Len(t, results, 3)

	byID := map[string]float64{}
	for _, res := range results {
		byID[res.Entry.ID()] = res.Score
	}
	assert.InDelta(t, 1.0, byID["chunk-same"], 1e-9)
	assert.InDelta(t, 0.5, byID["chunk-orth"], 1e-9)
	assert.InDelta(t, 0.5, byID["chunk-zero"], 1e-9)
	assert.Equal(t, []string{"chunk-same", "chunk-orth", "chunk-zero"}, ids(results))
}

func TestRanker_MixedBatchUsesLexicalScoring(t *testing.T) {
	tests := []struct {
		name       string
		candidates []model.CorpusEntry
		wantCalls  int
	}{
		{
			name: "entry without vector",
			candidates: []model.CorpusEntry{
				chunkWith("chunk-vec", "asthma inhaler technique", []float32{0, 1}),
				chunkWith("chunk-bare", "asthma inhaler technique", nil),
			},
			wantCalls: 0,
		},
		{
			name: "dimension mismatch",
			candidates: []model.CorpusEntry{
				chunkWith("chunk-vec", "asthma inhaler technique", []float32{0, 1}),
				chunkWith("chunk-bare", "asthma inhaler technique", []float32{0, 1, 0}),
			},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &mockEmbedder{vec: []float32{1, 0}}
			results, err := NewRanker(emb).Rank(context.Background(), "asthma inhaler", tt.candidates, RankOptions{Threshold: 0.5, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, emb.calls)
			require.Len(t, results, 2)
			// 两条都按词项评分，正交向量不会把 chunk-vec 拉到 0.5
			assert.InDelta(t, 1.0, results[0].Score, 1e-9)
			assert.InDelta(t, 1.0, results[1].Score, 1e-9)
			assert.Equal(t, []string{"chunk-bare", "chunk-vec"}, ids(results))
		})
	}
}

func TestRanker_EmbedderError(t *testing.T) {
	r := NewRanker(&mockEmbedder{err: errBackend})
	candidates := []model.CorpusEntry{chunkWith("chunk-1", "asthma", []float32{1, 0})}

	_, err := r.Rank(context.Background(), "asthma", candidates, RankOptions{Threshold: 0.5, Limit: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackend)
}

func TestRanker_NoEmbeddingsSkipsEmbedder(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1, 0}}
	r := NewRanker(emb)

	_, err := r.Rank(context.Background(), "asthma", []model.CorpusEntry{asthmaChunk()}, RankOptions{Threshold: 0.5, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, emb.calls)
}

func TestCosine(t *testing.T) {
	cos, ok := Cosine([]float32{1, 2}, []float32{2, 4})
	require.True(t, ok)
	assert.InDelta(t, 1.0, cos, 1e-9)

	cos, ok = Cosine([]float32{1, 0}, []float32{-1, 0})
	require.True(t, ok)
	assert.InDelta(t, 0.0, CosineScore(cos), 1e-9)

	_, ok = Cosine([]float32{1, 0}, []float32{1, 0, 0})
	assert.False(t, ok)
	_, ok = Cosine([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)
}
