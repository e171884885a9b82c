package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/service"
)

// SessionHandler 处理会话与消息历史相关的 API 请求。
type SessionHandler struct {
	sessions service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessions service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionRequest struct {
	Title string `json:"title" binding:"required"`
}

type appendMessageRequest struct {
	Role      model.MessageRole `json:"role" binding:"required"`
	Content   string            `json:"content" binding:"required"`
	Citations []model.Citation  `json:"citations"`
}

// Create 为当前用户新建会话。
func (h *SessionHandler) Create(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), currentUserID(c), req.Title)
	if err != nil {
		respondError(c, "SessionHandler.Create", err)
		return
	}
	respondOK(c, http.StatusCreated, session)
}

// List 返回当前用户的全部会话。
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.ListByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, "SessionHandler.List", err)
		return
	}
	respondOK(c, http.StatusOK, sessions)
}

// Rename 修改会话标题。
func (h *SessionHandler) Rename(c *gin.Context) {
	if _, ok := h.owned(c); !ok {
		return
	}
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	session, err := h.sessions.Rename(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		respondError(c, "SessionHandler.Rename", err)
		return
	}
	respondOK(c, http.StatusOK, session)
}

// Delete 删除会话及其全部消息。
func (h *SessionHandler) Delete(c *gin.Context) {
	if _, ok := h.owned(c); !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "SessionHandler.Delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages 按时间顺序返回会话内的消息。
func (h *SessionHandler) ListMessages(c *gin.Context) {
	if _, ok := h.owned(c); !ok {
		return
	}
	messages, err := h.sessions.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "SessionHandler.ListMessages", err)
		return
	}
	respondOK(c, http.StatusOK, messages)
}

// AppendMessage 手动追加一条消息，不触发检索。
func (h *SessionHandler) AppendMessage(c *gin.Context) {
	if _, ok := h.owned(c); !ok {
		return
	}
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	msg, err := h.sessions.AppendMessage(c.Request.Context(), c.Param("id"), req.Role, req.Content, req.Citations)
	if err != nil {
		respondError(c, "SessionHandler.AppendMessage", err)
		return
	}
	respondOK(c, http.StatusCreated, msg)
}

// owned 加载路径中的会话；不存在或不属于当前用户时直接写回 404。
func (h *SessionHandler) owned(c *gin.Context) (*model.ChatSession, bool) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err == nil && session.UserID != currentUserID(c) {
		err = service.ErrSessionNotFound
	}
	if err != nil {
		respondError(c, "SessionHandler", err)
		return nil, false
	}
	return session, true
}
