// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pedia-assist-go/internal/service"
	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/token"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": "success", "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// respondError 将业务错误映射为 HTTP 状态码，未识别的错误一律 500。
func respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorf("[%s] 请求处理失败: %v", op, err)
		respondMessage(c, status, "服务器内部错误")
		return
	}
	log.Warnf("[%s] 请求被拒绝: %v", op, err)
	respondMessage(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSessionID),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidEntry):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// currentUserID 读取 AuthMiddleware 写入上下文的用户 ID。
func currentUserID(c *gin.Context) string {
	if claims, ok := c.Get("claims"); ok {
		if cc, ok := claims.(*token.CustomClaims); ok {
			return cc.UserID
		}
	}
	return ""
}
