package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fyerfyer/goal-map/api/middleware"
	"github.com/fyerfyer/goal-map/api/model"
	"github.com/fyerfyer/goal-map/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// streamDone 流结束标记
const streamDone = "[DONE]"

// ChatHandler 处理对话相关的API请求
type ChatHandler struct {
	chatService *services.ChatService // 对话服务
	logger      *logrus.Logger        // 日志记录器
}

// NewChatHandler 创建新的对话处理器
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      middleware.GetLogger(),
	}
}

// StreamChat 以SSE转发推理服务的增量回复
// POST /api/chat
func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chat request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的对话消息"))
		return
	}

	deltas, err := h.chatService.Stream(c.Request.Context(), chatInput(&req))
	if err != nil {
		// 尚未写出任何内容，按普通错误响应返回
		middleware.HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	count := 0
	for delta, err := range deltas {
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"error":                 err.Error(),
				"delta_count":           count,
				middleware.FieldTraceID: middleware.GetTraceID(c),
			}).Error("Chat stream interrupted")
			h.writeEvent(c, model.StreamError{Error: err.Error()})
			break
		}
		count++
		if !h.writeEvent(c, model.NewStreamChunk(delta)) {
			return
		}
	}

	fmt.Fprintf(c.Writer, "data: %s\n\n", streamDone)
	c.Writer.Flush()

	h.logger.WithField("delta_count", count).Debug("Chat stream finished")
}

// CompleteChat 等待完整回复后返回
// POST /api/chat/complete
func (h *ChatHandler) CompleteChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chat request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的对话消息"))
		return
	}

	resp, err := h.chatService.Complete(c.Request.Context(), chatInput(&req))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ChatCompleteResponse{
		Content:    resp.Text,
		Model:      resp.ModelName,
		DeltaCount: resp.DeltaCount,
	}))
}

// writeEvent 写出一条SSE记录，客户端断开时返回false
func (h *ChatHandler) writeEvent(c *gin.Context, v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode stream record")
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		h.logger.WithError(err).Warn("Client disconnected during chat stream")
		return false
	}
	c.Writer.Flush()
	return true
}

func chatInput(req *model.ChatRequest) services.ChatInput {
	return services.ChatInput{
		Messages: req.LLMMessages(),
		Model:    req.Model,
		Agent:    req.Agent,
	}
}
