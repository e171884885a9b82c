package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/tasks"

	"github.com/google/uuid"
)

// ObjectUploader 将导入源文件写入对象存储。
type ObjectUploader interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
}

// TaskPublisher 发布一个导入任务，生产环境中是 kafka.ProduceIngestTask。
type TaskPublisher func(ctx context.Context, task tasks.IngestTask) error

// IngestRequest 描述一个待上传的导入源文件。Type 之外的字段按任务类型选填。
type IngestRequest struct {
	Type         string
	FileName     string
	ChapterTitle string
	SectionTitle string
	IDPrefix     string
	ResourceID   string
	Title        string
	ResourceKind string
	Category     string
	Tags         []string
}

// IngestService 负责把源文件上传到对象存储并投递导入任务。
type IngestService interface {
	Submit(ctx context.Context, req IngestRequest, r io.Reader, size int64) (*tasks.IngestTask, error)
}

type ingestService struct {
	store   ObjectUploader
	publish TaskPublisher
}

// NewIngestService 创建一个新的 IngestService。
func NewIngestService(store ObjectUploader, publish TaskPublisher) IngestService {
	return &ingestService{store: store, publish: publish}
}

func (s *ingestService) Submit(ctx context.Context, req IngestRequest, r io.Reader, size int64) (*tasks.IngestTask, error) {
	fileName := path.Base(strings.TrimSpace(req.FileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	taskID := uuid.NewString()
	task := tasks.IngestTask{
		TaskID:       taskID,
		Type:         req.Type,
		ObjectName:   fmt.Sprintf("ingest/%s/%s", taskID, fileName),
		ChapterTitle: req.ChapterTitle,
		SectionTitle: req.SectionTitle,
		IDPrefix:     req.IDPrefix,
		ResourceID:   req.ResourceID,
		Title:        req.Title,
		ResourceKind: req.ResourceKind,
		Category:     req.Category,
		Tags:         req.Tags,
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	log.Infof("[IngestService] 步骤1: 上传源文件, object: %s, size: %d", task.ObjectName, size)
	if err := s.store.PutObject(ctx, task.ObjectName, r, size, contentTypeFor(fileName)); err != nil {
		return nil, fmt.Errorf("failed to upload ingest source: %w", err)
	}

	log.Infof("[IngestService] 步骤2: 投递导入任务, id: %s, type: %s", task.TaskID, task.Type)
	if err := s.publish(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to publish ingest task: %w", err)
	}
	return &task, nil
}

// contentTypeFor 根据扩展名推断对象的 Content-Type。
func contentTypeFor(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	typeMapping := map[string]string{
		".pdf":   "application/pdf",
		".doc":   "application/msword",
		".docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".txt":   "text/plain",
		".md":    "text/markdown",
		".html":  "text/html",
		".jsonl": "application/x-ndjson",
		".json":  "application/json",
	}
	if t, ok := typeMapping[ext]; ok {
		return t
	}
	return "application/octet-stream"
}
