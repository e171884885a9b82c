package service

import "errors"

// 业务层的哨兵错误，handler 通过 errors.Is 映射为 HTTP 状态码。
var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrEmptyMessage     = errors.New("message must not be empty")
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidEntry     = errors.New("invalid corpus entry")
	ErrDuplicateEntry   = errors.New("duplicate corpus entry")
)
