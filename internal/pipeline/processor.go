// Package pipeline 定义了语料导入任务的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/storage"
	"pedia-assist-go/pkg/tasks"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// TextExtractor 从任意文档中提取纯文本，由 Tika 客户端实现。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Processor 封装了导入任务的所有依赖和逻辑。
type Processor struct {
	store         storage.ObjectStore
	corpus        service.CorpusService
	extractor     TextExtractor
	pageExtractor func(data []byte) ([]string, error)
	chunkSize     int
	chunkOverlap  int
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(store storage.ObjectStore, corpus service.CorpusService, extractor TextExtractor) *Processor {
	return &Processor{
		store:         store,
		corpus:        corpus,
		extractor:     extractor,
		pageExtractor: ExtractPDFPages,
		chunkSize:     defaultChunkSize,
		chunkOverlap:  defaultChunkOverlap,
	}
}

// Process 是导入任务的主函数。重复投递是安全的：已存在的条目会被跳过。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[Processor] 开始处理导入任务, id: %s, type: %s, object: %s", task.TaskID, task.Type, task.ObjectName)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid ingest task: %w", err)
	}

	// 1. 从 MinIO 下载源文件
	log.Infof("[Processor] 步骤1: 从MinIO下载文件, Object: %s", task.ObjectName)
	data, err := p.store.GetObject(ctx, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 从MinIO下载文件失败, Object: %s, Error: %v", task.ObjectName, err)
		return fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	if len(data) == 0 {
		log.Warnf("[Processor] 文件 '%s' 内容为空, 处理中止", task.ObjectName)
		return errors.New("文件内容为空")
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d字节", len(data))

	switch task.Type {
	case tasks.TypeCorpusBatch:
		return p.processBatch(ctx, data)
	case tasks.TypeTextbookPDF:
		return p.processTextbookPDF(ctx, task, data)
	case tasks.TypeResourceDocument:
		return p.processResourceDocument(ctx, task, data)
	}
	return fmt.Errorf("unknown task type %q", task.Type)
}

func (p *Processor) processBatch(ctx context.Context, data []byte) error {
	log.Info("[Processor] 步骤2: 按 JSONL 批量导入语料")
	report, err := p.corpus.BulkLoad(ctx, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("批量导入失败: %w", err)
	}
	log.Infof("[Processor] 批量导入完成, 新增: %d, 跳过: %d", report.Created, report.Skipped)
	return nil
}

func (p *Processor) processTextbookPDF(ctx context.Context, task tasks.IngestTask, data []byte) error {
	// 2. 按页提取文本，页码即 PDF 页序号
	log.Info("[Processor] 步骤2: 按页提取 PDF 文本")
	pages, err := p.pageExtractor(data)
	if err != nil {
		log.Errorf("[Processor] 提取 PDF 文本失败, Object: %s, Error: %v", task.ObjectName, err)
		return fmt.Errorf("提取 PDF 文本失败: %w", err)
	}

	var section *string
	if task.SectionTitle != "" {
		s := task.SectionTitle
		section = &s
	}

	// 3. 逐页切块并入库，chunk_index 在整个章节内连续递增
	log.Infof("[Processor] 步骤3: 进行文本分块, chunkSize: %d, chunkOverlap: %d", p.chunkSize, p.chunkOverlap)
	created, skipped, chunkIndex := 0, 0, 0
	for i, pageText := range pages {
		pageNumber := i + 1
		for _, piece := range splitText(strings.TrimSpace(pageText), p.chunkSize, p.chunkOverlap) {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			_, err := p.corpus.CreateTextbookChunk(ctx, service.ChunkInput{
				ID:           fmt.Sprintf("%s-p%d-c%d", task.IDPrefix, pageNumber, chunkIndex),
				ChapterTitle: task.ChapterTitle,
				SectionTitle: section,
				Content:      piece,
				PageNumber:   pageNumber,
				ChunkIndex:   chunkIndex,
			})
			chunkIndex++
			switch {
			case err == nil:
				created++
			case errors.Is(err, service.ErrDuplicateEntry):
				skipped++
			default:
				return fmt.Errorf("保存第 %d 页分块失败: %w", pageNumber, err)
			}
		}
	}
	if created+skipped == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, 处理中止, Object: %s", task.ObjectName)
		return errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 教材导入完成, 页数: %d, 新增分块: %d, 跳过: %d", len(pages), created, skipped)
	return nil
}

func (p *Processor) processResourceDocument(ctx context.Context, task tasks.IngestTask, data []byte) error {
	// 2. 使用 Tika 提取文本
	log.Info("[Processor] 步骤2: 使用Tika提取文本内容")
	text, err := p.extractor.ExtractText(ctx, bytes.NewReader(data), task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 使用Tika提取文本失败, Object: %s, Error: %v", task.ObjectName, err)
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("提取的文本内容为空")
	}

	_, err = p.corpus.CreateReferenceResource(ctx, service.ResourceInput{
		ID:           task.ResourceID,
		Title:        task.Title,
		Content:      text,
		ResourceKind: model.ResourceKind(task.ResourceKind),
		Category:     task.Category,
		Tags:         task.Tags,
	})
	if errors.Is(err, service.ErrDuplicateEntry) {
		log.Infof("[Processor] 参考资源已存在, 跳过: %s", task.ResourceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("保存参考资源失败: %w", err)
	}
	log.Infof("[Processor] 参考资源导入完成, id: %s", task.ResourceID)
	return nil
}

// ExtractPDFPages 返回每一页的纯文本，下标 i 对应第 i+1 页。
func ExtractPDFPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		return simpleSplit(text, chunkSize)
	}

	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
