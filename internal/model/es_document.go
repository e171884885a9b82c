// Package model 定义了与数据库表对应的 Go 结构体。
package model

// SearchResult 是一个语料条目与其相似度得分（[0,1]）的组合。
type SearchResult struct {
	Entry CorpusEntry `json:"entry"`
	Score float64     `json:"similarity_score"`
}

// EsCorpusDocument 定义了存储在 Elasticsearch 中的语料文档结构。
// 两种条目共用一个索引，通过 kind 字段区分。
type EsCorpusDocument struct {
	EntryID      string    `json:"entry_id"`
	Kind         EntryKind `json:"kind"`
	Title        string    `json:"title"`
	SectionTitle string    `json:"section_title,omitempty"`
	Category     string    `json:"category,omitempty"`
	Content      string    `json:"content"`
	PageNumber   int       `json:"page_number,omitempty"`
	ChunkIndex   int       `json:"chunk_index"`
	ResourceKind string    `json:"resource_kind,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Vector       []float32 `json:"vector,omitempty"`
}

// NewEsCorpusDocument 将语料条目转换为 ES 文档。
func NewEsCorpusDocument(e CorpusEntry) EsCorpusDocument {
	doc := EsCorpusDocument{EntryID: e.ID(), Kind: e.Kind, Content: e.Body(), Vector: e.Embedding()}
	switch e.Kind {
	case EntryKindChunk:
		doc.Title = e.Chunk.ChapterTitle
		if e.Chunk.SectionTitle != nil {
			doc.SectionTitle = *e.Chunk.SectionTitle
		}
		doc.PageNumber = e.Chunk.PageNumber
		doc.ChunkIndex = e.Chunk.ChunkIndex
	case EntryKindResource:
		doc.Title = e.Resource.Title
		doc.Category = e.Resource.Category
		doc.ResourceKind = string(e.Resource.ResourceKind)
		doc.Tags = e.Resource.Tags
	}
	return doc
}

// ToEntry 将 ES 文档还原为语料条目。
func (d EsCorpusDocument) ToEntry() CorpusEntry {
	if d.Kind == EntryKindResource {
		return ResourceEntry(&ReferenceResource{
			ID:           d.EntryID,
			Title:        d.Title,
			Content:      d.Content,
			ResourceKind: ResourceKind(d.ResourceKind),
			Category:     d.Category,
			Tags:         d.Tags,
			Embedding:    d.Vector,
		})
	}
	chunk := &TextbookChunk{
		ID:           d.EntryID,
		ChapterTitle: d.Title,
		Content:      d.Content,
		PageNumber:   d.PageNumber,
		ChunkIndex:   d.ChunkIndex,
		Embedding:    d.Vector,
	}
	if d.SectionTitle != "" {
		s := d.SectionTitle
		chunk.SectionTitle = &s
	}
	return ChunkEntry(chunk)
}
