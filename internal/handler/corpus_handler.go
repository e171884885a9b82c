package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/log"
)

// CorpusHandler 负责语料条目的创建与导入文件的上传。
type CorpusHandler struct {
	corpus service.CorpusService
	ingest service.IngestService
}

// NewCorpusHandler 创建一个新的 CorpusHandler。ingest 为 nil 时上传接口返回 503。
func NewCorpusHandler(corpus service.CorpusService, ingest service.IngestService) *CorpusHandler {
	return &CorpusHandler{corpus: corpus, ingest: ingest}
}

// CreateChunk 创建一个教材分块。
func (h *CorpusHandler) CreateChunk(c *gin.Context) {
	var req service.ChunkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	chunk, err := h.corpus.CreateTextbookChunk(c.Request.Context(), req)
	if err != nil {
		respondError(c, "CorpusHandler.CreateChunk", err)
		return
	}
	respondOK(c, http.StatusCreated, chunk)
}

// CreateResource 创建一个参考资源。
func (h *CorpusHandler) CreateResource(c *gin.Context) {
	var req service.ResourceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	resource, err := h.corpus.CreateReferenceResource(c.Request.Context(), req)
	if err != nil {
		respondError(c, "CorpusHandler.CreateResource", err)
		return
	}
	respondOK(c, http.StatusCreated, resource)
}

// Upload 接收一个导入源文件（multipart 字段 file），上传后异步处理。
func (h *CorpusHandler) Upload(c *gin.Context) {
	if h.ingest == nil {
		respondMessage(c, http.StatusServiceUnavailable, "导入队列未启用")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "缺少上传文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, "CorpusHandler.Upload", err)
		return
	}
	defer file.Close()

	var tags []string
	for _, t := range strings.Split(c.PostForm("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	req := service.IngestRequest{
		Type:         c.PostForm("type"),
		FileName:     fileHeader.Filename,
		ChapterTitle: c.PostForm("chapter_title"),
		SectionTitle: c.PostForm("section_title"),
		IDPrefix:     c.PostForm("id_prefix"),
		ResourceID:   c.PostForm("resource_id"),
		Title:        c.PostForm("title"),
		ResourceKind: c.PostForm("resource_kind"),
		Category:     c.PostForm("category"),
		Tags:         tags,
	}
	task, err := h.ingest.Submit(c.Request.Context(), req, file, fileHeader.Size)
	if err != nil {
		respondError(c, "CorpusHandler.Upload", err)
		return
	}
	log.Infof("[CorpusHandler] 导入任务已提交, id: %s, type: %s", task.TaskID, task.Type)
	respondOK(c, http.StatusAccepted, task)
}
