package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/repository/testutil"
)

func strPtr(s string) *string { return &s }

func seedCorpus(t *testing.T, repo CorpusRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateChunk(ctx, &model.TextbookChunk{
		ID:           "chunk-resp-1",
		ChapterTitle: "Respiratory Disorders",
		SectionTitle: strPtr("Pediatric Asthma"),
		Content:      "Asthma is a chronic respiratory condition affecting many children.",
		PageNumber:   245,
	}))
	require.NoError(t, repo.CreateChunk(ctx, &model.TextbookChunk{
		ID:           "chunk-neo-1",
		ChapterTitle: "Neonatology",
		Content:      "Neonatal jaundice is common in the first week of life.",
		PageNumber:   12,
	}))
	require.NoError(t, repo.CreateResource(ctx, &model.ReferenceResource{
		ID:           "res-fever-1",
		Title:        "Fever Protocol",
		Content:      "Guidelines for managing fever in infants and children.",
		ResourceKind: model.ResourceKindProtocol,
		Category:     "Emergency",
		Tags:         []string{"fever", "triage"},
	}))
}

func TestCorpusRepository_CreateAndFind(t *testing.T) {
	repo := NewCorpusRepository(testutil.DB(t))
	seedCorpus(t, repo)
	ctx := context.Background()

	entry, err := repo.FindByID(ctx, "chunk-resp-1")
	require.NoError(t, err)
	assert.Equal(t, model.EntryKindChunk, entry.Kind)
	assert.Equal(t, 245, entry.Chunk.PageNumber)
	require.NotNil(t, entry.Chunk.SectionTitle)
	assert.Equal(t, "Pediatric Asthma", *entry.Chunk.SectionTitle)
	assert.Empty(t, entry.Chunk.Embedding)

	entry, err = repo.FindByID(ctx, "res-fever-1")
	require.NoError(t, err)
	assert.Equal(t, model.EntryKindResource, entry.Kind)
	assert.Equal(t, []string{"fever", "triage"}, []string(entry.Resource.Tags))

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCorpusRepository_DuplicateIDAcrossKinds(t *testing.T) {
	repo := NewCorpusRepository(testutil.DB(t))
	seedCorpus(t, repo)
	ctx := context.Background()

	err := repo.CreateResource(ctx, &model.ReferenceResource{
		ID:           "chunk-resp-1",
		Title:        "Clash",
		Content:      "x",
		ResourceKind: model.ResourceKindReference,
		Category:     "General",
	})
	assert.ErrorIs(t, err, ErrDuplicateEntryID)

	err = repo.CreateChunk(ctx, &model.TextbookChunk{ID: "res-fever-1", ChapterTitle: "Clash", Content: "x", PageNumber: 1})
	assert.ErrorIs(t, err, ErrDuplicateEntryID)

	exists, err := repo.Exists(ctx, "res-fever-1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCorpusRepository_ListCandidatesByTerms(t *testing.T) {
	repo := NewCorpusRepository(testutil.DB(t))
	seedCorpus(t, repo)
	ctx := context.Background()

	t.Run("case-insensitive across body and titles", func(t *testing.T) {
		entries, err := repo.ListCandidatesByTerms(ctx, []string{"children"}, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "chunk-resp-1", entries[0].ID())
		assert.Equal(t, "res-fever-1", entries[1].ID())

		entries, err = repo.ListCandidatesByTerms(ctx, []string{"emergency"}, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "res-fever-1", entries[0].ID())

		entries, err = repo.ListCandidatesByTerms(ctx, []string{"pediatric"}, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "chunk-resp-1", entries[0].ID())
	})

	t.Run("any term matches", func(t *testing.T) {
		entries, err := repo.ListCandidatesByTerms(ctx, []string{"jaundice", "asthma"}, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "chunk-neo-1", entries[0].ID())
		assert.Equal(t, "chunk-resp-1", entries[1].ID())
	})

	t.Run("limit per kind", func(t *testing.T) {
		entries, err := repo.ListCandidatesByTerms(ctx, []string{"the", "children"}, 1)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, model.EntryKindChunk, entries[0].Kind)
		assert.Equal(t, model.EntryKindResource, entries[1].Kind)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		entries, err := repo.ListCandidatesByTerms(ctx, []string{"%"}, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)

		entries, err = repo.ListCandidatesByTerms(ctx, []string{"quantum"}, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("no terms", func(t *testing.T) {
		entries, err := repo.ListCandidatesByTerms(ctx, nil, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestCorpusRepository_UpdateEmbedding(t *testing.T) {
	repo := NewCorpusRepository(testutil.DB(t))
	seedCorpus(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.UpdateEmbedding(ctx, "chunk-resp-1", []float32{0.25, 0.5}))
	require.NoError(t, repo.UpdateEmbedding(ctx, "res-fever-1", []float32{1, 0}))

	entry, err := repo.FindByID(ctx, "chunk-resp-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5}, []float32(entry.Chunk.Embedding))
	assert.Equal(t, "Respiratory Disorders", entry.Chunk.ChapterTitle)

	entry, err = repo.FindByID(ctx, "res-fever-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, []float32(entry.Resource.Embedding))

	assert.ErrorIs(t, repo.UpdateEmbedding(ctx, "missing", []float32{1}), gorm.ErrRecordNotFound)
}
