package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// SemanticSearch 是处理语义搜索请求的 Gin 处理函数。
// 参数: query（必填）、limit（默认 10）、similarity_threshold（默认 0.7）。
func (h *SearchHandler) SemanticSearch(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到语义搜索请求, query: %s", query)

	limit := service.DefaultSearchLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "无效的 limit 参数")
			return
		}
		limit = n
	}
	threshold := service.DefaultSearchThreshold
	if s := c.Query("similarity_threshold"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "无效的 similarity_threshold 参数")
			return
		}
		threshold = f
	}

	results, err := h.searchService.SemanticSearch(c.Request.Context(), query, limit, threshold)
	if err != nil {
		respondError(c, "SearchHandler", err)
		return
	}

	log.Infof("[SearchHandler] 语义搜索成功, query: '%s', 返回 %d 条结果", query, len(results))
	respondOK(c, http.StatusOK, results)
}
