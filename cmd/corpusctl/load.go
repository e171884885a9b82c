package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/internal/repository"
	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/database"
	"pedia-assist-go/pkg/embedding"
	"pedia-assist-go/pkg/es"
)

var flagNoEmbed bool

var loadCmd = &cobra.Command{
	Use:   "load <file.jsonl>",
	Short: "Load a JSONL corpus file directly into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open corpus file: %w", err)
		}
		defer f.Close()

		database.InitMySQL(cfg.Database.MySQL.DSN)

		var embedder embedding.Client
		if cfg.Embedding.Enabled() && !flagNoEmbed {
			embedder = embedding.NewClient(cfg.Embedding)
		}
		var indexer service.EntryIndexer
		if cfg.Elasticsearch.Addresses != "" {
			if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
				return fmt.Errorf("init elasticsearch: %w", err)
			}
			indexer = es.NewCorpusIndex(es.ESClient, cfg.Elasticsearch.IndexName)
		}

		corpus := service.NewCorpusService(repository.NewCorpusRepository(database.DB), embedder, indexer, cfg.Embedding.Dimensions)

		fmt.Printf("Loading %s...\n", args[0])
		start := time.Now()
		report, err := corpus.BulkLoad(cmd.Context(), f)
		fmt.Printf("Done in %s: %d created, %d skipped\n", time.Since(start).Round(time.Millisecond), report.Created, report.Skipped)
		return err
	},
}

func init() {
	loadCmd.Flags().BoolVar(&flagNoEmbed, "no-embed", false, "do not compute missing embeddings")
	rootCmd.AddCommand(loadCmd)
}
