package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/goal-map/api/model"
	"github.com/fyerfyer/goal-map/internal/document"
	"github.com/fyerfyer/goal-map/internal/llm"
	"github.com/fyerfyer/goal-map/internal/models"
	"github.com/fyerfyer/goal-map/internal/ragstore"
	"github.com/fyerfyer/goal-map/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 输入验证错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在错误
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
	ErrorTypeBusiness   = "BUSINESS_ERROR"   // 业务逻辑错误
	ErrorTypeUpstream   = "UPSTREAM_ERROR"   // 推理服务或存储服务错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// NewBusinessError 创建业务逻辑错误
func NewBusinessError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeBusiness,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusConflict,
	}
}

// NewUpstreamError 创建上游服务错误
func NewUpstreamError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadGateway,
	}
}

// FromError 将服务层错误映射为应用错误
func FromError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var (
		llmErr   llm.LLMError
		storeErr *ragstore.APIError
	)
	switch {
	case errors.Is(err, document.ErrUnsupportedType):
		return NewValidationError("不支持的文件类型，请上传 PDF、DOCX、TXT 或 Markdown 文件", err.Error())
	case errors.Is(err, document.ErrInvalidChunkConfig):
		return NewValidationError("分块参数无效", err.Error())
	case errors.Is(err, services.ErrEmptyFileName):
		return NewValidationError("未提供文件名")
	case errors.Is(err, services.ErrInvalidChatInput):
		return NewValidationError("对话消息无效", err.Error())
	case errors.Is(err, models.ErrInvalidDocumentStatus):
		return NewValidationError("无效的文档状态", err.Error())
	case errors.Is(err, ragstore.ErrEmptyQuery):
		return NewValidationError("检索内容不能为空")
	case errors.Is(err, models.ErrDocumentNotFound):
		return NewNotFoundError("未找到文档")
	case errors.Is(err, services.ErrInvalidTransition):
		return NewBusinessError("文档当前状态不允许该操作", err.Error())
	case errors.As(err, &llmErr) && llm.IsTransportError(err):
		return NewUpstreamError("推理服务不可用", err.Error())
	case errors.As(err, &llmErr):
		return NewUpstreamError("推理服务返回错误", err.Error())
	case errors.As(err, &storeErr), errors.Is(err, ragstore.ErrUnavailable):
		return NewUpstreamError("存储服务不可用", err.Error())
	default:
		return NewInternalError("服务器内部错误", err.Error())
	}
}

// ErrorHandler 统一错误处理中间件
// 恢复panic，并将处理器记录的最后一个错误转换为统一响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					FieldError:   err,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: GetTraceID(c),
				}).Error("Panic recovered in API request")

				errResp := model.NewErrorResponse(http.StatusInternalServerError, "服务器内部错误")
				if gin.Mode() == gin.DebugMode {
					errResp.Message = fmt.Sprintf("Panic: %v", err)
				}
				errResp.TraceID = GetTraceID(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := FromError(c.Errors.Last().Err)
		traceID := GetTraceID(c)

		entry := log.WithFields(logrus.Fields{
			"error_type":   appErr.Type,
			FieldTraceID:   traceID,
			FieldPath:      c.Request.URL.Path,
			"error_detail": appErr.Details,
		})
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
