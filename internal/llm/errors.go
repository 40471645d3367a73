package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyerfyer/goal-map/internal/stream"
)

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
	Cause   error  // 原始错误（可选）
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e LLMError) Unwrap() error {
	return e.Cause
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyMessages  = 1007 // 消息列表为空
	ErrCodeStreamError    = 1011 // 流读取中断
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyMessages  = "messages cannot be empty"
	ErrMsgNetworkError   = "network connection error"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	// 如果已经是LLMError类型，则直接返回
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// wrapTransportError 将传输层错误映射为对应错误码
func wrapTransportError(err error) LLMError {
	if errors.Is(err, context.DeadlineExceeded) {
		return LLMError{Code: ErrCodeTimeout, Message: ErrMsgTimeout, Cause: err}
	}

	var transportErr *stream.TransportError
	if !errors.As(err, &transportErr) {
		return WrapError(err, ErrCodeNetworkError)
	}

	code := ErrCodeNetworkError
	switch {
	case transportErr.StatusCode == http.StatusUnauthorized || transportErr.StatusCode == http.StatusForbidden:
		code = ErrCodeInvalidAPIKey
	case transportErr.StatusCode == http.StatusTooManyRequests:
		code = ErrCodeRateLimited
	case transportErr.StatusCode >= 500:
		code = ErrCodeServerError
	case transportErr.StatusCode >= 400:
		code = ErrCodeInvalidRequest
	}
	return LLMError{Code: code, Message: transportErr.Error(), Cause: err}
}

// IsTransportError 判断错误是否来自推理服务的传输层
func IsTransportError(err error) bool {
	var transportErr *stream.TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		switch llmErr.Code {
		case ErrCodeInvalidAPIKey, ErrCodeNetworkError, ErrCodeRateLimited, ErrCodeServerError, ErrCodeTimeout:
			return true
		}
	}
	return false
}
