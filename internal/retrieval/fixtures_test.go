package retrieval

import (
	"context"
	"errors"

	"pedia-assist-go/internal/model"
)

func strPtr(s string) *string { return &s }

func asthmaChunk() model.CorpusEntry {
	return model.ChunkEntry(&model.TextbookChunk{
		ID:           "chunk-resp-1",
		ChapterTitle: "Respiratory Disorders",
		SectionTitle: strPtr("Pediatric Asthma"),
		Content:      "Asthma is a chronic respiratory condition affecting many children. Management includes bronchodilators and inhaled corticosteroids.",
		PageNumber:   245,
		ChunkIndex:   0,
	})
}

func feverResource() model.CorpusEntry {
	return model.ResourceEntry(&model.ReferenceResource{
		ID:           "res-fever-1",
		Title:        "Fever Protocol",
		Content:      "Guidelines for managing fever in infants and children, including antipyretic dosing.",
		ResourceKind: model.ResourceKindProtocol,
		Category:     "Emergency",
	})
}

func chunkWith(id, content string, embedding []float32) model.CorpusEntry {
	return model.ChunkEntry(&model.TextbookChunk{
		ID:           id,
		ChapterTitle: "General Pediatrics",
		Content:      content,
		PageNumber:   10,
		Embedding:    embedding,
	})
}

func resourceWith(id, content string, embedding []float32) model.CorpusEntry {
	return model.ResourceEntry(&model.ReferenceResource{
		ID:           id,
		Title:        "Reference",
		Content:      content,
		ResourceKind: model.ResourceKindReference,
		Category:     "General",
		Embedding:    embedding,
	})
}

// mockSource implements CandidateSource for testing.
type mockSource struct {
	entries []model.CorpusEntry
	err     error
	calls   int
	terms   []string
	limit   int
}

func (m *mockSource) ListCandidatesByTerms(_ context.Context, terms []string, limitPerKind int) ([]model.CorpusEntry, error) {
	m.calls++
	m.terms = terms
	m.limit = limitPerKind
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

// mockEmbedder implements QueryEmbedder for testing.
type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

var errBackend = errors.New("backend unavailable")
