package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/kafka"
	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/storage"
	"pedia-assist-go/pkg/tasks"
)

var enqueueReq service.IngestRequest

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <file>",
	Short: "Upload a source file to object storage and queue it for ingest",
	Long: `Upload a source file and publish an ingest task.

Task types:
  corpus_batch       JSONL file, one chunk or resource per line
  textbook_pdf       PDF chapter, requires --chapter and --id-prefix
  resource_document  any Tika-readable document, requires --resource-id,
                     --title, --resource-kind and --category`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open source file: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		storage.InitMinIO(cfg.MinIO)
		kafka.InitProducer(cfg.Kafka)
		defer func() {
			if err := kafka.CloseProducer(); err != nil {
				log.Errorf("关闭 Kafka 生产者失败: %v", err)
			}
		}()

		ingest := service.NewIngestService(
			storage.NewBucketStore(storage.MinioClient, cfg.MinIO.BucketName),
			kafka.ProduceIngestTask,
		)
		req := enqueueReq
		req.FileName = filepath.Base(args[0])
		task, err := ingest.Submit(cmd.Context(), req, f, info.Size())
		if err != nil {
			return err
		}
		fmt.Printf("Queued %s task %s (object %s)\n", task.Type, task.TaskID, task.ObjectName)
		return nil
	},
}

func init() {
	fl := enqueueCmd.Flags()
	fl.StringVar(&enqueueReq.Type, "type", tasks.TypeCorpusBatch, "task type: corpus_batch, textbook_pdf or resource_document")
	fl.StringVar(&enqueueReq.ChapterTitle, "chapter", "", "chapter title (textbook_pdf)")
	fl.StringVar(&enqueueReq.SectionTitle, "section", "", "section title (textbook_pdf)")
	fl.StringVar(&enqueueReq.IDPrefix, "id-prefix", "", "chunk id prefix (textbook_pdf)")
	fl.StringVar(&enqueueReq.ResourceID, "resource-id", "", "resource id (resource_document)")
	fl.StringVar(&enqueueReq.Title, "title", "", "resource title (resource_document)")
	fl.StringVar(&enqueueReq.ResourceKind, "resource-kind", "", "protocol, guideline, reference or calculation (resource_document)")
	fl.StringVar(&enqueueReq.Category, "category", "", "resource category (resource_document)")
	fl.StringSliceVar(&enqueueReq.Tags, "tag", nil, "resource tag, repeatable (resource_document)")
	rootCmd.AddCommand(enqueueCmd)
}
