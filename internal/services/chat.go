package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/fyerfyer/goal-map/internal/llm"
	"github.com/sirupsen/logrus"
)

// ErrInvalidChatInput 对话输入不合法
var ErrInvalidChatInput = errors.New("invalid chat input")

// ChatInput 一次对话请求
type ChatInput struct {
	Messages []llm.Message // 完整的对话历史
	Model    string        // 可选，覆盖默认模型
	Agent    string        // 可选的智能体标识
}

// ChatService 对话服务
// 校验对话历史并转发到推理服务
type ChatService struct {
	client llm.Client     // 推理服务客户端
	logger *logrus.Logger // 日志记录器
}

// ChatOption 对话服务配置选项
type ChatOption func(*ChatService)

// NewChatService 创建对话服务
func NewChatService(client llm.Client, opts ...ChatOption) *ChatService {
	service := &ChatService{
		client: client,
		logger: logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithChatLogger 设置日志记录器
func WithChatLogger(logger *logrus.Logger) ChatOption {
	return func(s *ChatService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stream 返回回复的增量序列
// 传输层错误在第一个增量之前以error返回
func (s *ChatService) Stream(ctx context.Context, input ChatInput) (iter.Seq2[string, error], error) {
	if err := validateChatInput(input); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"messages": len(input.Messages),
		"model":    input.Model,
		"agent":    input.Agent,
	}).Info("Starting chat stream")

	deltas, err := s.client.ChatStream(ctx, input.Messages, chatOptions(input)...)
	if err != nil {
		s.logger.WithError(err).Error("Failed to start chat stream")
		return nil, err
	}
	return deltas, nil
}

// Complete 等待完整回复
func (s *ChatService) Complete(ctx context.Context, input ChatInput) (*llm.Response, error) {
	if err := validateChatInput(input); err != nil {
		return nil, err
	}

	resp, err := s.client.Chat(ctx, input.Messages, chatOptions(input)...)
	if err != nil {
		s.logger.WithError(err).Error("Failed to complete chat")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"model":       resp.ModelName,
		"delta_count": resp.DeltaCount,
	}).Info("Chat completed")
	return resp, nil
}

// validateChatInput 历史不能为空，角色必须合法，最后一条必须来自用户
func validateChatInput(input ChatInput) error {
	if len(input.Messages) == 0 {
		return fmt.Errorf("%w: messages cannot be empty", ErrInvalidChatInput)
	}
	for i, msg := range input.Messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidChatInput, i, msg.Role)
		}
	}

	last := input.Messages[len(input.Messages)-1]
	if last.Role != llm.RoleUser {
		return fmt.Errorf("%w: last message must come from the user", ErrInvalidChatInput)
	}
	if strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: last message cannot be empty", ErrInvalidChatInput)
	}
	return nil
}

func chatOptions(input ChatInput) []llm.ChatOption {
	var opts []llm.ChatOption
	if input.Model != "" {
		opts = append(opts, llm.WithChatModel(input.Model))
	}
	if input.Agent != "" {
		opts = append(opts, llm.WithChatAgent(input.Agent))
	}
	return opts
}
