// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// EntryKind 是语料条目的显式类型标签，下游组件只根据它分支。
type EntryKind string

const (
	EntryKindChunk    EntryKind = "chunk"
	EntryKindResource EntryKind = "resource"
)

// ResourceKind 是参考资源的分类。
type ResourceKind string

const (
	ResourceKindProtocol    ResourceKind = "protocol"
	ResourceKindGuideline   ResourceKind = "guideline"
	ResourceKindReference   ResourceKind = "reference"
	ResourceKindCalculation ResourceKind = "calculation"
)

// Valid 判断资源类型是否属于允许的枚举值。
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceKindProtocol, ResourceKindGuideline, ResourceKindReference, ResourceKindCalculation:
		return true
	}
	return false
}

// TextbookChunk 对应于数据库中的 'textbook_chunks' 表。
// ChunkIndex 定义了同一章节内分块的规范顺序。
type TextbookChunk struct {
	ID           string                      `gorm:"type:varchar(128);primaryKey" json:"id"`
	ChapterTitle string                      `gorm:"type:varchar(255);not null;index" json:"chapter_title"`
	SectionTitle *string                     `gorm:"type:varchar(255)" json:"section_title"`
	Content      string                      `gorm:"type:text;not null" json:"content"`
	PageNumber   int                         `gorm:"not null" json:"page_number"`
	ChunkIndex   int                         `gorm:"not null" json:"chunk_index"`
	Embedding    datatypes.JSONSlice[float32] `json:"embedding"`
	CreatedAt    time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (TextbookChunk) TableName() string {
	return "textbook_chunks"
}

// ReferenceResource 对应于数据库中的 'reference_resources' 表。
type ReferenceResource struct {
	ID           string                     `gorm:"type:varchar(128);primaryKey" json:"id"`
	Title        string                     `gorm:"type:varchar(255);not null" json:"title"`
	Content      string                     `gorm:"type:text;not null" json:"content"`
	ResourceKind ResourceKind               `gorm:"type:varchar(32);not null" json:"resource_kind"`
	Category     string                     `gorm:"type:varchar(128);not null;index" json:"category"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Embedding    datatypes.JSONSlice[float32] `json:"embedding"`
	CreatedAt    time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ReferenceResource) TableName() string {
	return "reference_resources"
}

// CorpusEntry 是教材分块与参考资源的带标签联合体。
// Kind 决定 Chunk 与 Resource 中哪一个非空。
type CorpusEntry struct {
	Kind     EntryKind          `json:"kind"`
	Chunk    *TextbookChunk     `json:"chunk,omitempty"`
	Resource *ReferenceResource `json:"resource,omitempty"`
}

// ChunkEntry 将教材分块包装为语料条目。
func ChunkEntry(c *TextbookChunk) CorpusEntry {
	return CorpusEntry{Kind: EntryKindChunk, Chunk: c}
}

// ResourceEntry 将参考资源包装为语料条目。
func ResourceEntry(r *ReferenceResource) CorpusEntry {
	return CorpusEntry{Kind: EntryKindResource, Resource: r}
}

// ID 返回条目的全局唯一标识。
func (e CorpusEntry) ID() string {
	switch e.Kind {
	case EntryKindChunk:
		return e.Chunk.ID
	case EntryKindResource:
		return e.Resource.ID
	}
	return ""
}

// Body 返回条目正文。
func (e CorpusEntry) Body() string {
	switch e.Kind {
	case EntryKindChunk:
		return e.Chunk.Content
	case EntryKindResource:
		return e.Resource.Content
	}
	return ""
}

// TitleFields 返回参与词项匹配的标题类字段：
// 教材分块为章节标题与小节标题，参考资源为标题与分类。
func (e CorpusEntry) TitleFields() []string {
	switch e.Kind {
	case EntryKindChunk:
		fields := []string{e.Chunk.ChapterTitle}
		if e.Chunk.SectionTitle != nil && *e.Chunk.SectionTitle != "" {
			fields = append(fields, *e.Chunk.SectionTitle)
		}
		return fields
	case EntryKindResource:
		return []string{e.Resource.Title, e.Resource.Category}
	}
	return nil
}

// Embedding 返回条目的预计算向量，没有时为 nil。
func (e CorpusEntry) Embedding() []float32 {
	switch e.Kind {
	case EntryKindChunk:
		return e.Chunk.Embedding
	case EntryKindResource:
		return e.Resource.Embedding
	}
	return nil
}

// SourceLabel 返回面向用户的来源名称：章节标题或资源标题。
func (e CorpusEntry) SourceLabel() string {
	switch e.Kind {
	case EntryKindChunk:
		return e.Chunk.ChapterTitle
	case EntryKindResource:
		return e.Resource.Title
	}
	return ""
}

// SearchableText 返回正文与标题类字段拼接后的小写文本，用于词项命中判断。
func (e CorpusEntry) SearchableText() string {
	parts := append([]string{e.Body()}, e.TitleFields()...)
	return strings.ToLower(strings.Join(parts, "\n"))
}
