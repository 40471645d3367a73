package model

import (
	"github.com/fyerfyer/goal-map/internal/llm"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role" binding:"required,chatrole"` // 消息角色：system, user, assistant
	Content string `json:"content"`                          // 消息内容
}

// ChatRequest 对话请求，包含完整的对话历史
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"` // 对话历史
	Model    string        `json:"model,omitempty"`                        // 可选，覆盖默认模型
	Agent    string        `json:"agent,omitempty"`                        // 可选的智能体标识
}

// LLMMessages 转换为推理服务的消息格式
func (r *ChatRequest) LLMMessages() []llm.Message {
	msgs := make([]llm.Message, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = llm.Message{Role: llm.MessageRole(m.Role), Content: m.Content}
	}
	return msgs
}

// ChatCompleteResponse 非流式对话响应
type ChatCompleteResponse struct {
	Content    string `json:"content"`     // 完整回复
	Model      string `json:"model"`       // 使用的模型
	DeltaCount int    `json:"delta_count"` // 收到的增量数
}

// StreamDelta 流式增量内容
type StreamDelta struct {
	Content string `json:"content"`
}

// StreamChoice 流式响应中的候选项
type StreamChoice struct {
	Delta StreamDelta `json:"delta"`
}

// StreamChunk 转发给前端的单条流式记录
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
}

// NewStreamChunk 用增量文本构造流式记录
func NewStreamChunk(content string) StreamChunk {
	return StreamChunk{Choices: []StreamChoice{{Delta: StreamDelta{Content: content}}}}
}

// StreamError 流开始后发生的错误记录
type StreamError struct {
	Error string `json:"error"`
}

// validateChatRole 校验消息角色
func validateChatRole(fl validator.FieldLevel) bool {
	return llm.MessageRole(fl.Field().String()).Valid()
}

// RegisterValidators 向gin的校验器注册自定义规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("chatrole", validateChatRole)
}
