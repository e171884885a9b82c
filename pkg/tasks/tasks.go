// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"errors"
	"fmt"
)

// 导入任务类型。
const (
	TypeCorpusBatch      = "corpus_batch"
	TypeTextbookPDF      = "textbook_pdf"
	TypeResourceDocument = "resource_document"
)

// IngestTask represents a corpus ingest job whose source object lives in MinIO.
type IngestTask struct {
	TaskID     string `json:"task_id"`
	Type       string `json:"type"`
	ObjectName string `json:"object_name"`

	// textbook_pdf
	ChapterTitle string `json:"chapter_title,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	IDPrefix     string `json:"id_prefix,omitempty"`

	// resource_document
	ResourceID   string   `json:"resource_id,omitempty"`
	Title        string   `json:"title,omitempty"`
	ResourceKind string   `json:"resource_kind,omitempty"`
	Category     string   `json:"category,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Validate 检查任务字段是否满足其类型的要求。
func (t IngestTask) Validate() error {
	if t.TaskID == "" {
		return errors.New("task_id is required")
	}
	if t.ObjectName == "" {
		return errors.New("object_name is required")
	}
	switch t.Type {
	case TypeCorpusBatch:
		return nil
	case TypeTextbookPDF:
		if t.ChapterTitle == "" || t.IDPrefix == "" {
			return errors.New("textbook_pdf requires chapter_title and id_prefix")
		}
		return nil
	case TypeResourceDocument:
		if t.ResourceID == "" || t.Title == "" || t.ResourceKind == "" || t.Category == "" {
			return errors.New("resource_document requires resource_id, title, resource_kind and category")
		}
		return nil
	}
	return fmt.Errorf("unknown task type %q", t.Type)
}
