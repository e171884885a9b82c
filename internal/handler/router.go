package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pedia-assist-go/internal/middleware"
	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/token"
)

// Services 汇总路由所需的业务服务。Ingest 可为 nil。
type Services struct {
	Sessions service.SessionService
	Chat     service.ChatService
	Search   service.SearchService
	Corpus   service.CorpusService
	Ingest   service.IngestService
	// Health 检查依赖的可用性，为 nil 时只报告进程存活。
	Health func(ctx context.Context) error
}

// NewRouter 创建 Gin 引擎并注册全部路由。
func NewRouter(svc Services, jwtManager *token.JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if svc.Health != nil {
			if err := svc.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessionHandler := NewSessionHandler(svc.Sessions)
	chatHandler := NewChatHandler(svc.Chat, svc.Sessions, jwtManager)
	searchHandler := NewSearchHandler(svc.Search)
	corpusHandler := NewCorpusHandler(svc.Corpus, svc.Ingest)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(jwtManager))
	{
		sessions := apiV1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.Create)
			sessions.GET("", sessionHandler.List)
			sessions.PUT("/:id", sessionHandler.Rename)
			sessions.DELETE("/:id", sessionHandler.Delete)
			sessions.GET("/:id/messages", sessionHandler.ListMessages)
			sessions.POST("/:id/messages", sessionHandler.AppendMessage)
		}

		apiV1.POST("/chat/query", chatHandler.Query)
		apiV1.GET("/search/semantic", searchHandler.SemanticSearch)

		corpus := apiV1.Group("/corpus")
		{
			corpus.POST("/chunks", corpusHandler.CreateChunk)
			corpus.POST("/resources", corpusHandler.CreateResource)
			corpus.POST("/uploads", corpusHandler.Upload)
		}
	}

	// WebSocket 无法携带授权头，token 放在路径中
	r.GET("/chat/:token", chatHandler.Handle)
	return r
}
