package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/internal/model"
)

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"drops short words", "asthma management in children", []string{"asthma", "management", "children"}},
		{"lowercases", "Quantum Mechanics in PEDIATRICS", []string{"quantum", "mechanics", "pediatrics"}},
		{"drops stop words", "what are the signs of croup", []string{"signs", "croup"}},
		{"trims punctuation", "fever? (infant) dosing.", []string{"fever", "infant", "dosing"}},
		// 长度在去掉标点之后计算："is," 与 "ok!!" 均被丢弃
		{"length measured after trimming", "is, ok!! croup", []string{"croup"}},
		{"dedupes preserving order", "fever Fever FEVER rash fever", []string{"fever", "rash"}},
		{"only short words", "is it ok to go", []string{}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTerms(tt.query))
		})
	}
}

func TestMatchedTerms(t *testing.T) {
	e := asthmaChunk()
	assert.Equal(t, 3, MatchedTerms(e, []string{"asthma", "management", "children"}))
	assert.Equal(t, 1, MatchedTerms(e, []string{"respiratory", "quantum"}))
	// 标题类字段也参与匹配
	assert.Equal(t, 1, MatchedTerms(e, []string{"pediatric"}))
	assert.Equal(t, 1, MatchedTerms(feverResource(), []string{"emergency"}))
	assert.Equal(t, 0, MatchedTerms(feverResource(), []string{"quantum"}))
}

func TestLexicalMatcher_Match(t *testing.T) {
	t.Run("no salient terms skips store", func(t *testing.T) {
		src := &mockSource{}
		m := NewLexicalMatcher(src, 50)

		terms, entries, err := m.Match(context.Background(), "is it ok")
		require.NoError(t, err)
		assert.Empty(t, terms)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
		assert.Equal(t, 0, src.calls)
	})

	t.Run("passes terms and limit to store", func(t *testing.T) {
		src := &mockSource{entries: []model.CorpusEntry{asthmaChunk(), feverResource()}}
		m := NewLexicalMatcher(src, 50)

		terms, entries, err := m.Match(context.Background(), "asthma management in children")
		require.NoError(t, err)
		assert.Equal(t, []string{"asthma", "management", "children"}, terms)
		assert.Equal(t, terms, src.terms)
		assert.Equal(t, 50, src.limit)
		require.Len(t, entries, 2)
		assert.Equal(t, "chunk-resp-1", entries[0].ID())
		assert.Equal(t, "res-fever-1", entries[1].ID())
	})

	t.Run("filters non-matching and duplicate entries", func(t *testing.T) {
		unrelated := chunkWith("chunk-x", "Neonatal jaundice overview.", nil)
		src := &mockSource{entries: []model.CorpusEntry{asthmaChunk(), unrelated, asthmaChunk()}}
		m := NewLexicalMatcher(src, 0)

		_, entries, err := m.Match(context.Background(), "asthma")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "chunk-resp-1", entries[0].ID())
	})

	t.Run("store error propagates", func(t *testing.T) {
		src := &mockSource{err: errBackend}
		m := NewLexicalMatcher(src, 0)

		_, _, err := m.Match(context.Background(), "asthma")
		require.Error(t, err)
		assert.ErrorIs(t, err, errBackend)
	})
}
