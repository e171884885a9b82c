// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/internal/handler"
	"pedia-assist-go/internal/pipeline"
	"pedia-assist-go/internal/repository"
	"pedia-assist-go/internal/retrieval"
	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/database"
	"pedia-assist-go/pkg/embedding"
	"pedia-assist-go/pkg/es"
	"pedia-assist-go/pkg/kafka"
	"pedia-assist-go/pkg/llm"
	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/storage"
	"pedia-assist-go/pkg/tika"
	"pedia-assist-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	configPath := "./configs/config.yaml"
	if p := os.Getenv("PEDIA_CONFIG"); p != "" {
		configPath = p
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis)

	// 4. 初始化 Repository
	corpusRepo := repository.NewCorpusRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)

	// 5. 初始化外部客户端：Embedding 与 LLM 均为可选
	var embeddingClient embedding.Client
	if cfg.Embedding.Enabled() {
		embeddingClient = embedding.NewCachedClient(
			embedding.NewClient(cfg.Embedding),
			database.RDB,
			cfg.Embedding.Model,
			time.Duration(cfg.Embedding.CacheTTLMinutes)*time.Minute,
		)
		log.Infof("Embedding 服务已启用, model: %s, dims: %d", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	var llmClient llm.Client
	if cfg.Composer.Mode == "llm" && cfg.LLM.BaseURL != "" {
		llmClient = llm.NewClient(cfg.LLM)
	}

	// 6. 选择候选召回后端；配置了 Elasticsearch 时同时用于写入索引
	var source retrieval.CandidateSource = corpusRepo
	var indexer service.EntryIndexer
	if cfg.Elasticsearch.Addresses != "" {
		if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
			log.Errorf("es 初始化失败 %s", err)
			return
		}
		corpusIndex := es.NewCorpusIndex(es.ESClient, cfg.Elasticsearch.IndexName)
		indexer = corpusIndex
		if cfg.Retrieval.Backend == "elasticsearch" {
			source = corpusIndex
		}
	}
	log.Infof("候选召回后端: %s", cfg.Retrieval.Backend)

	// 7. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	matcher := retrieval.NewLexicalMatcher(source, cfg.Retrieval.CandidateLimit)
	ranker := retrieval.NewRanker(embeddingClient)
	composer := service.NewComposer(cfg.Composer, cfg.LLM, llmClient)
	corpusService := service.NewCorpusService(corpusRepo, embeddingClient, indexer, cfg.Embedding.Dimensions)
	sessionService := service.NewSessionService(sessionRepo, messageRepo)
	searchService := service.NewSearchService(matcher, ranker)
	chatService := service.NewChatService(sessionRepo, messageRepo, matcher, ranker, composer, service.ChatOptions{
		Retrieval:    cfg.Retrieval,
		MaxCitations: cfg.Composer.MaxCitations,
	})

	// 8. 导入流水线：MinIO + Kafka 均配置时启用
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	var ingestService service.IngestService
	if cfg.MinIO.Endpoint != "" && cfg.Kafka.Brokers != "" {
		storage.InitMinIO(cfg.MinIO)
		kafka.InitProducer(cfg.Kafka)
		defer func() {
			if err := kafka.CloseProducer(); err != nil {
				log.Errorf("关闭 Kafka 生产者失败: %v", err)
			}
		}()

		bucket := storage.NewBucketStore(storage.MinioClient, cfg.MinIO.BucketName)
		ingestService = service.NewIngestService(bucket, kafka.ProduceIngestTask)
		processor := pipeline.NewProcessor(bucket, corpusService, tika.NewClient(cfg.Tika))
		go kafka.StartConsumer(bgCtx, cfg.Kafka, processor)
	} else {
		log.Info("未配置 MinIO 或 Kafka，导入流水线未启用")
	}

	// 9. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Services{
		Sessions: sessionService,
		Chat:     chatService,
		Search:   searchService,
		Corpus:   corpusService,
		Ingest:   ingestService,
		Health:   health,
	}, jwtManager)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停止 Kafka 消费者，再关闭 HTTP 服务器
	cancelBg()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// health 检查 MySQL 与 Redis 是否可用。
func health(ctx context.Context) error {
	sqlDB, err := database.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	if err := database.RDB.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
