package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/fyerfyer/goal-map/internal/document"
	"github.com/fyerfyer/goal-map/internal/llm"
	"github.com/fyerfyer/goal-map/internal/models"
	"github.com/fyerfyer/goal-map/internal/ragstore"
	"github.com/fyerfyer/goal-map/internal/services"
)

// TestFromError 测试服务层错误到HTTP状态码的映射
func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"unsupported type", fmt.Errorf("%w (.xlsx)", document.ErrUnsupportedType), http.StatusBadRequest, ErrorTypeValidation},
		{"invalid chunk config", fmt.Errorf("%w: min size", document.ErrInvalidChunkConfig), http.StatusBadRequest, ErrorTypeValidation},
		{"empty file name", services.ErrEmptyFileName, http.StatusBadRequest, ErrorTypeValidation},
		{"invalid chat input", services.ErrInvalidChatInput, http.StatusBadRequest, ErrorTypeValidation},
		{"empty query", ragstore.ErrEmptyQuery, http.StatusBadRequest, ErrorTypeValidation},
		{"not found", fmt.Errorf("%w: abc", models.ErrDocumentNotFound), http.StatusNotFound, ErrorTypeNotFound},
		{"invalid transition", services.ErrInvalidTransition, http.StatusConflict, ErrorTypeBusiness},
		{"llm transport", llm.NewLLMError(llm.ErrCodeTimeout, llm.ErrMsgTimeout), http.StatusBadGateway, ErrorTypeUpstream},
		{"llm request", llm.NewLLMError(llm.ErrCodeEmptyMessages, llm.ErrMsgEmptyMessages), http.StatusBadGateway, ErrorTypeUpstream},
		{"store api error", fmt.Errorf("store: %w", &ragstore.APIError{StatusCode: 500}), http.StatusBadGateway, ErrorTypeUpstream},
		{"store unavailable", fmt.Errorf("%w: refused", ragstore.ErrUnavailable), http.StatusBadGateway, ErrorTypeUpstream},
		{"app error", NewBusinessError("busy"), http.StatusConflict, ErrorTypeBusiness},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromError(tt.err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantType, appErr.Type)
		})
	}
}

// TestErrorHandler_Panic 测试panic恢复
func TestErrorHandler_Panic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SetTraceID(), ErrorHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))
	assert.Contains(t, w.Body.String(), "服务器内部错误")
}
