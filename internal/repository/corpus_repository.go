// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pedia-assist-go/internal/model"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ErrDuplicateEntryID 表示条目 ID 已被任一类型的语料条目占用。
var ErrDuplicateEntryID = errors.New("corpus entry id already exists")

// CorpusRepository 定义了语料库（教材分块与参考资源）的数据操作接口。
type CorpusRepository interface {
	CreateChunk(ctx context.Context, chunk *model.TextbookChunk) error
	CreateResource(ctx context.Context, resource *model.ReferenceResource) error
	Exists(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (model.CorpusEntry, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	ListCandidatesByTerms(ctx context.Context, terms []string, limitPerKind int) ([]model.CorpusEntry, error)
}

type corpusRepository struct {
	db *gorm.DB
}

// NewCorpusRepository 创建一个新的 CorpusRepository 实例。
func NewCorpusRepository(db *gorm.DB) CorpusRepository {
	return &corpusRepository{db: db}
}

// CreateChunk 在同一事务中检查 ID 的全局唯一性并写入教材分块。
func (r *corpusRepository) CreateChunk(ctx context.Context, chunk *model.TextbookChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureIDFree(tx, chunk.ID); err != nil {
			return err
		}
		return tx.Create(chunk).Error
	})
}

// CreateResource 在同一事务中检查 ID 的全局唯一性并写入参考资源。
func (r *corpusRepository) CreateResource(ctx context.Context, resource *model.ReferenceResource) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureIDFree(tx, resource.ID); err != nil {
			return err
		}
		return tx.Create(resource).Error
	})
}

func ensureIDFree(tx *gorm.DB, id string) error {
	exists, err := idExists(tx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntryID, id)
	}
	return nil
}

func idExists(db *gorm.DB, id string) (bool, error) {
	var n int64
	if err := db.Model(&model.TextbookChunk{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := db.Model(&model.ReferenceResource{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Exists 判断 ID 是否已存在于任一语料表中。
func (r *corpusRepository) Exists(ctx context.Context, id string) (bool, error) {
	return idExists(r.db.WithContext(ctx), id)
}

// FindByID 根据 ID 查找语料条目，未找到时返回 gorm.ErrRecordNotFound。
func (r *corpusRepository) FindByID(ctx context.Context, id string) (model.CorpusEntry, error) {
	db := r.db.WithContext(ctx)
	var chunk model.TextbookChunk
	err := db.Where("id = ?", id).First(&chunk).Error
	if err == nil {
		return model.ChunkEntry(&chunk), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CorpusEntry{}, err
	}
	var resource model.ReferenceResource
	if err := db.Where("id = ?", id).First(&resource).Error; err != nil {
		return model.CorpusEntry{}, err
	}
	return model.ResourceEntry(&resource), nil
}

// UpdateEmbedding 只更新向量与更新时间，ID 与其他字段保持不变。
func (r *corpusRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	entry, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	switch entry.Kind {
	case model.EntryKindChunk:
		entry.Chunk.Embedding = embedding
		return db.Model(entry.Chunk).Select("embedding", "updated_at").Updates(entry.Chunk).Error
	default:
		entry.Resource.Embedding = embedding
		return db.Model(entry.Resource).Select("embedding", "updated_at").Updates(entry.Resource).Error
	}
}

// ListCandidatesByTerms 返回正文或标题类字段包含任一词项（不区分大小写的子串匹配）的条目。
// 两张表并发查询，结果先教材分块后参考资源，各自按 ID 升序。
// limitPerKind <= 0 表示不限制。
func (r *corpusRepository) ListCandidatesByTerms(ctx context.Context, terms []string, limitPerKind int) ([]model.CorpusEntry, error) {
	if len(terms) == 0 {
		return []model.CorpusEntry{}, nil
	}

	var chunks []model.TextbookChunk
	var resources []model.ReferenceResource

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		where, args := likeAny(terms, "content", "chapter_title", "section_title")
		q := r.db.WithContext(gctx).Where(where, args...).Order("id ASC")
		if limitPerKind > 0 {
			q = q.Limit(limitPerKind)
		}
		if err := q.Find(&chunks).Error; err != nil {
			return fmt.Errorf("query textbook chunks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		where, args := likeAny(terms, "content", "title", "category")
		q := r.db.WithContext(gctx).Where(where, args...).Order("id ASC")
		if limitPerKind > 0 {
			q = q.Limit(limitPerKind)
		}
		if err := q.Find(&resources).Error; err != nil {
			return fmt.Errorf("query reference resources: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]model.CorpusEntry, 0, len(chunks)+len(resources))
	for i := range chunks {
		entries = append(entries, model.ChunkEntry(&chunks[i]))
	}
	for i := range resources {
		entries = append(entries, model.ResourceEntry(&resources[i]))
	}
	return entries, nil
}

// likeAny 构建 "LOWER(col) LIKE ? ESCAPE '!' OR ..." 条件。
// 使用 '!' 作为转义符，MySQL 与 SQLite 下语义一致。
func likeAny(terms []string, columns ...string) (string, []interface{}) {
	parts := make([]string, 0, len(terms)*len(columns))
	args := make([]interface{}, 0, len(terms)*len(columns))
	for _, term := range terms {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		for _, col := range columns {
			parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '!'", col))
			args = append(args, pattern)
		}
	}
	return strings.Join(parts, " OR "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
