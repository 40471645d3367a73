package llm

import (
	"context"
	"iter"
	"time"
)

// Client 对话客户端接口
// 负责把对话转发给推理服务并返回增量文本
type Client interface {
	// ChatStream 发起流式对话，传输错误在产出任何增量之前返回
	ChatStream(ctx context.Context, messages []Message, options ...ChatOption) (iter.Seq2[string, error], error)

	// Chat 进行对话并拼接全部增量
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 对话客户端配置
type Config struct {
	Endpoint string        // 推理服务地址
	APIKey   string        // API密钥（可选）
	Model    string        // 模型名称
	Agent    string        // 智能体标识（可选）
	Timeout  time.Duration // 等待响应头的超时时间
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:3001/api/chat",
		Model:    DefaultModel,
		Timeout:  60 * time.Second,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithEndpoint 设置推理服务地址
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAgent 设置默认智能体
func WithAgent(agent string) Option {
	return func(c *Config) {
		c.Agent = agent
	}
}

// WithTimeout 设置超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ChatOption 单次对话请求的选项
type ChatOption func(*ChatOptions)

// ChatOptions 单次对话请求的选项集合，未设置时使用客户端配置
type ChatOptions struct {
	Model string // 模型名称
	Agent string // 智能体标识
}

// WithChatModel 覆盖本次请求的模型
func WithChatModel(model string) ChatOption {
	return func(o *ChatOptions) {
		o.Model = model
	}
}

// WithChatAgent 覆盖本次请求的智能体
func WithChatAgent(agent string) ChatOption {
	return func(o *ChatOptions) {
		o.Agent = agent
	}
}

// Factory 对话客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建对话客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
