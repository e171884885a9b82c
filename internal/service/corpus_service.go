package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/repository"
	"pedia-assist-go/pkg/embedding"
	"pedia-assist-go/pkg/log"
)

// maxBulkLineBytes 是 JSONL 语料文件单行的最大长度，足以容纳 4096 维向量。
const maxBulkLineBytes = 4 << 20

// ChunkInput 是创建教材分块的输入。
type ChunkInput struct {
	ID           string    `json:"id"`
	ChapterTitle string    `json:"chapter_title"`
	SectionTitle *string   `json:"section_title"`
	Content      string    `json:"content"`
	PageNumber   int       `json:"page_number"`
	ChunkIndex   int       `json:"chunk_index"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// ResourceInput 是创建参考资源的输入。
type ResourceInput struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Content      string             `json:"content"`
	ResourceKind model.ResourceKind `json:"resource_kind"`
	Category     string             `json:"category"`
	Tags         []string           `json:"tags"`
	Embedding    []float32          `json:"embedding,omitempty"`
}

// BulkLine 是 JSONL 语料文件中的一行，kind 决定读取哪个字段。
type BulkLine struct {
	Kind     model.EntryKind `json:"kind"`
	Chunk    *ChunkInput     `json:"chunk,omitempty"`
	Resource *ResourceInput  `json:"resource,omitempty"`
}

// BulkReport 汇总一次批量导入的结果。
type BulkReport struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// EntryIndexer 在条目持久化后同步到外部检索索引。
type EntryIndexer interface {
	IndexEntry(ctx context.Context, entry model.CorpusEntry) error
}

// CorpusService 定义了语料导入的业务逻辑接口。
type CorpusService interface {
	CreateTextbookChunk(ctx context.Context, in ChunkInput) (*model.TextbookChunk, error)
	CreateReferenceResource(ctx context.Context, in ResourceInput) (*model.ReferenceResource, error)
	// BulkLoad 逐行导入 JSONL 语料，已存在的 ID 会被跳过。
	BulkLoad(ctx context.Context, r io.Reader) (BulkReport, error)
}

type corpusService struct {
	repo     repository.CorpusRepository
	embedder embedding.Client
	indexer  EntryIndexer
	dims     int
}

// NewCorpusService 创建一个新的 CorpusService。
// embedder 为 nil 时不补算向量；indexer 为 nil 时不同步外部索引；dims 为 0 时不校验向量维度。
func NewCorpusService(repo repository.CorpusRepository, embedder embedding.Client, indexer EntryIndexer, dims int) CorpusService {
	return &corpusService{repo: repo, embedder: embedder, indexer: indexer, dims: dims}
}

func (s *corpusService) CreateTextbookChunk(ctx context.Context, in ChunkInput) (*model.TextbookChunk, error) {
	if err := validateChunk(in); err != nil {
		return nil, err
	}
	vec, err := s.resolveEmbedding(ctx, in.Embedding, in.Content)
	if err != nil {
		return nil, err
	}
	chunk := &model.TextbookChunk{
		ID:           strings.TrimSpace(in.ID),
		ChapterTitle: in.ChapterTitle,
		SectionTitle: in.SectionTitle,
		Content:      in.Content,
		PageNumber:   in.PageNumber,
		ChunkIndex:   in.ChunkIndex,
		Embedding:    vec,
	}
	if err := s.repo.CreateChunk(ctx, chunk); err != nil {
		return nil, s.handleCreateErr(ctx, chunk.ID, err)
	}
	log.Infof("[CorpusService] 教材分块入库, id: %s, chapter: '%s', page: %d", chunk.ID, chunk.ChapterTitle, chunk.PageNumber)
	if err := s.index(ctx, model.ChunkEntry(chunk)); err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *corpusService) CreateReferenceResource(ctx context.Context, in ResourceInput) (*model.ReferenceResource, error) {
	if err := validateResource(in); err != nil {
		return nil, err
	}
	vec, err := s.resolveEmbedding(ctx, in.Embedding, in.Content)
	if err != nil {
		return nil, err
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	resource := &model.ReferenceResource{
		ID:           strings.TrimSpace(in.ID),
		Title:        in.Title,
		Content:      in.Content,
		ResourceKind: in.ResourceKind,
		Category:     in.Category,
		Tags:         tags,
		Embedding:    vec,
	}
	if err := s.repo.CreateResource(ctx, resource); err != nil {
		return nil, s.handleCreateErr(ctx, resource.ID, err)
	}
	log.Infof("[CorpusService] 参考资源入库, id: %s, title: '%s'", resource.ID, resource.Title)
	if err := s.index(ctx, model.ResourceEntry(resource)); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *corpusService) BulkLoad(ctx context.Context, r io.Reader) (BulkReport, error) {
	var report BulkReport
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBulkLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line BulkLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return report, fmt.Errorf("%w: line %d: %v", ErrInvalidEntry, lineNo, err)
		}

		var err error
		switch {
		case line.Kind == model.EntryKindChunk && line.Chunk != nil:
			_, err = s.CreateTextbookChunk(ctx, *line.Chunk)
		case line.Kind == model.EntryKindResource && line.Resource != nil:
			_, err = s.CreateReferenceResource(ctx, *line.Resource)
		default:
			err = fmt.Errorf("%w: kind %q without matching payload", ErrInvalidEntry, line.Kind)
		}
		switch {
		case err == nil:
			report.Created++
		case errors.Is(err, ErrDuplicateEntry):
			report.Skipped++
		default:
			return report, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("failed to read corpus file: %w", err)
	}
	log.Infof("[CorpusService] 批量导入完成, 新增: %d, 跳过: %d", report.Created, report.Skipped)
	return report, nil
}

// resolveEmbedding 校验调用方提供的向量维度；未提供且配置了 Embedding 服务时补算。
// 配置了 Embedding 服务时语料必须全部带向量，补算失败即创建失败，由批量导入或消费者重试。
func (s *corpusService) resolveEmbedding(ctx context.Context, given []float32, content string) ([]float32, error) {
	if len(given) > 0 {
		if s.dims > 0 && len(given) != s.dims {
			return nil, fmt.Errorf("%w: embedding has %d dimensions, expected %d", ErrInvalidEntry, len(given), s.dims)
		}
		return given, nil
	}
	if s.embedder == nil {
		return nil, nil
	}
	vec, err := s.embedder.CreateEmbedding(ctx, content)
	if err != nil {
		log.Errorf("[CorpusService] 补算向量失败: %v", err)
		return nil, fmt.Errorf("failed to compute embedding: %w", err)
	}
	if s.dims > 0 && len(vec) != s.dims {
		return nil, fmt.Errorf("failed to compute embedding: %w: got %d, expected %d", embedding.ErrDimensionMismatch, len(vec), s.dims)
	}
	return vec, nil
}

// handleCreateErr 把重复 ID 转换为 ErrDuplicateEntry。
// 已入库的条目可能在上次写索引时失败，因此重复时会把库中的版本重新写入索引，写入成功才视为跳过。
func (s *corpusService) handleCreateErr(ctx context.Context, id string, err error) error {
	if !errors.Is(err, repository.ErrDuplicateEntryID) {
		return fmt.Errorf("failed to persist corpus entry: %w", err)
	}
	if s.indexer != nil {
		stored, findErr := s.repo.FindByID(ctx, id)
		if findErr != nil {
			return fmt.Errorf("failed to load existing entry %s: %w", id, findErr)
		}
		if idxErr := s.index(ctx, stored); idxErr != nil {
			return idxErr
		}
	}
	return fmt.Errorf("%w: %v", ErrDuplicateEntry, err)
}

func (s *corpusService) index(ctx context.Context, entry model.CorpusEntry) error {
	if s.indexer == nil {
		return nil
	}
	if err := s.indexer.IndexEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to index entry %s: %w", entry.ID(), err)
	}
	return nil
}

func validateChunk(in ChunkInput) error {
	switch {
	case strings.TrimSpace(in.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	case strings.TrimSpace(in.ChapterTitle) == "":
		return fmt.Errorf("%w: chapter_title is required", ErrInvalidEntry)
	case strings.TrimSpace(in.Content) == "":
		return fmt.Errorf("%w: content is required", ErrInvalidEntry)
	case in.PageNumber <= 0:
		return fmt.Errorf("%w: page_number must be positive", ErrInvalidEntry)
	case in.ChunkIndex < 0:
		return fmt.Errorf("%w: chunk_index must not be negative", ErrInvalidEntry)
	}
	return nil
}

func validateResource(in ResourceInput) error {
	switch {
	case strings.TrimSpace(in.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	case strings.TrimSpace(in.Content) == "":
		return fmt.Errorf("%w: content is required", ErrInvalidEntry)
	case !in.ResourceKind.Valid():
		return fmt.Errorf("%w: unknown resource_kind %q", ErrInvalidEntry, in.ResourceKind)
	case strings.TrimSpace(in.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidEntry)
	}
	return nil
}
