package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Valid 判断角色是否合法
func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`    // 角色
	Content string      `json:"content"` // 内容
}

// ChatRequest 发送给推理服务的请求体
type ChatRequest struct {
	Model    string    `json:"model"`           // 模型名称
	Stream   bool      `json:"stream"`          // 始终为true
	Messages []Message `json:"messages"`        // 对话历史消息
	Agent    string    `json:"agent,omitempty"` // 可选的智能体标识
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	DeltaCount int       // 收到的增量数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// DefaultModel 默认模型名称
const DefaultModel = "gpt-3.5-turbo"
