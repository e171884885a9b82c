package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/token"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理问答请求，包括 HTTP 与 WebSocket 两种入口。
type ChatHandler struct {
	chatService service.ChatService
	sessions    service.SessionService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, sessions service.SessionService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		sessions:    sessions,
		jwtManager:  jwtManager,
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Query 处理一次同步问答。
func (h *ChatHandler) Query(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	resp, err := h.answer(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, "ChatHandler.Query", err)
		return
	}
	respondOK(c, http.StatusOK, resp)
}

// answer 校验会话归属后执行问答流程。
func (h *ChatHandler) answer(ctx context.Context, userID string, req chatRequest) (*model.ChatResponse, error) {
	if req.SessionID != "" {
		session, err := h.sessions.Get(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if session.UserID != userID {
			return nil, service.ErrSessionNotFound
		}
	}
	return h.chatService.ProcessQuery(ctx, req.SessionID, req.Message)
}

// Handle 处理一个传入的 WebSocket 连接。
// 每条入站消息形如 {"session_id":"...","message":"..."}，回答以一个 chunk 帧加一个 completion 帧返回。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		respondMessage(c, http.StatusUnauthorized, "无效的 token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req chatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			writeJSON(conn, map[string]string{"error": "无效的消息格式"})
			continue
		}

		resp, err := h.answer(c.Request.Context(), claims.UserID, req)
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				log.Errorf("处理问答失败: %v", err)
				writeJSON(conn, map[string]string{"error": "服务暂时不可用，请稍后重试"})
				sendCompletion(conn, nil)
				break
			}
			writeJSON(conn, map[string]string{"error": err.Error()})
			continue
		}

		writeJSON(conn, map[string]string{"chunk": resp.Message.Content})
		sendCompletion(conn, resp)
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("序列化 WebSocket 消息失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}

// sendCompletion 发送完成通知；resp 为 nil 表示本轮以错误结束。
func sendCompletion(conn *websocket.Conn, resp *model.ChatResponse) {
	now := time.Now()
	frame := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
	if resp == nil {
		frame["status"] = "error"
	} else {
		frame["message_id"] = resp.Message.ID
		frame["citations"] = resp.Message.Citations
		frame["sources"] = resp.Sources
	}
	writeJSON(conn, frame)
}
