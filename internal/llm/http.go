package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/goal-map/internal/stream"
)

// ProviderHTTP 基于HTTP流式接口的客户端类型名
const ProviderHTTP = "http"

func init() {
	RegisterClient(ProviderHTTP, NewHTTPClient)
}

// HTTPClient 通过HTTP调用推理服务的流式对话客户端
// 响应体为按行分隔的JSON记录，可带 "data: " 前缀
type HTTPClient struct {
	endpoint   string       // 推理服务地址
	apiKey     string       // API密钥
	model      string       // 默认模型
	agent      string       // 默认智能体
	httpClient *http.Client // HTTP客户端
	logger     *logrus.Logger
}

// NewHTTPClient 创建新的流式对话客户端
func NewHTTPClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, NewLLMError(ErrCodeInvalidRequest, "chat endpoint cannot be empty")
	}

	// 流式响应可能持续很久，超时只作用于等待响应头
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &HTTPClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		agent:      cfg.Agent,
		httpClient: &http.Client{Transport: transport},
		logger:     logrus.StandardLogger(),
	}, nil
}

// Name 返回模型名称
func (c *HTTPClient) Name() string {
	return c.model
}

// SetLogger 设置日志器
func (c *HTTPClient) SetLogger(logger *logrus.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// ChatStream 发起流式对话
func (c *HTTPClient) ChatStream(ctx context.Context, messages []Message, options ...ChatOption) (iter.Seq2[string, error], error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeEmptyMessages, ErrMsgEmptyMessages)
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	reqBody := ChatRequest{
		Model:    c.model,
		Stream:   true,
		Messages: messages,
		Agent:    c.agent,
	}
	if opts.Model != "" {
		reqBody.Model = opts.Model
	}
	if opts.Agent != "" {
		reqBody.Agent = opts.Agent
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint": c.endpoint,
		"model":    reqBody.Model,
		"messages": len(messages),
	}).Debug("Sending chat request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}

	deltas, err := stream.FromResponse(resp, stream.WithLogger(c.logger))
	if err != nil {
		c.logger.WithError(err).Warn("Chat endpoint rejected request")
		return nil, wrapTransportError(err)
	}

	return func(yield func(string, error) bool) {
		for delta, err := range deltas {
			if err != nil {
				yield("", WrapError(err, ErrCodeStreamError))
				return
			}
			if !yield(delta, nil) {
				return
			}
		}
	}, nil
}

// Chat 进行对话并拼接全部增量
func (c *HTTPClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	deltas, err := c.ChatStream(ctx, messages, options...)
	if err != nil {
		return nil, err
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}
	modelName := c.model
	if opts.Model != "" {
		modelName = opts.Model
	}

	return Collect(deltas, modelName)
}

// Collect 消费增量序列并拼接为完整回复
func Collect(deltas iter.Seq2[string, error], modelName string) (*Response, error) {
	var (
		sb    strings.Builder
		count int
	)
	for delta, err := range deltas {
		if err != nil {
			return nil, err
		}
		sb.WriteString(delta)
		count++
	}

	return &Response{
		Text:       sb.String(),
		DeltaCount: count,
		ModelName:  modelName,
		FinishTime: time.Now(),
	}, nil
}
