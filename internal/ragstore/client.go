// Package ragstore 将文档分块上传到外部检索存储服务
package ragstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client 检索存储服务客户端接口
type Client interface {
	// Store 按文档顺序上传分块
	Store(ctx context.Context, chunks []string) (*StoreResult, error)
	// Search 检索与查询最相关的分块
	Search(ctx context.Context, query string, topK int) ([]string, error)
	// Health 检查服务是否可用
	Health(ctx context.Context) (*HealthStatus, error)
}

// StoreResult 上传结果
type StoreResult struct {
	StoredChunks int `json:"stored_chunks"`
}

// SearchResult 检索结果
type SearchResult struct {
	Results []string `json:"results"`
}

// HealthStatus 服务状态
type HealthStatus struct {
	Status string `json:"status"`
}

// ErrEmptyQuery 检索内容为空
var ErrEmptyQuery = errors.New("search query cannot be empty")

// ErrUnavailable 存储服务不可达
var ErrUnavailable = errors.New("store service unavailable")

// APIError 表示存储服务返回的非2xx响应
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status code: %d): %s - %s", e.StatusCode, e.Message, e.Detail)
}

// HTTPClient 存储服务的HTTP客户端实现
// 请求失败不做重试，由调用方决定如何处理
type HTTPClient struct {
	client  *http.Client
	config  *Config
	headers map[string]string
	logger  *logrus.Logger
}

// NewClient 创建一个新的存储服务客户端
func NewClient(config *Config, logger *logrus.Logger) *HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &HTTPClient{
		client: client,
		config: config,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "Goal-Map-Go-Client/1.0",
		},
		logger: logger,
	}
}

// Store 上传分块，请求体为JSON字符串数组
func (c *HTTPClient) Store(ctx context.Context, chunks []string) (*StoreResult, error) {
	if chunks == nil {
		chunks = []string{}
	}

	result := &StoreResult{StoredChunks: -1}
	if err := c.do(ctx, http.MethodPost, c.config.StorePath, chunks, result); err != nil {
		return nil, err
	}

	// 部分服务不返回计数
	if result.StoredChunks < 0 {
		result.StoredChunks = len(chunks)
	}

	c.logger.WithFields(logrus.Fields{
		"chunks": len(chunks),
		"stored": result.StoredChunks,
	}).Info("Chunks uploaded to store")
	return result, nil
}

// Search 检索分块，参数通过查询串传递
func (c *HTTPClient) Search(ctx context.Context, query string, topK int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 3
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("top_k", strconv.Itoa(topK))

	var result SearchResult
	if err := c.do(ctx, http.MethodPost, c.config.SearchPath+"?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	if result.Results == nil {
		result.Results = []string{}
	}
	return result.Results, nil
}

// Health 检查存储服务状态
func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WithHeader 添加自定义请求头
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	c.headers[key] = value
	return c
}

func (c *HTTPClient) do(ctx context.Context, method, path string, data, result interface{}) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    "API call failed",
		}

		// 尝试解析错误详情
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Detail != "" {
			apiErr.Detail = errResp.Detail
		} else {
			apiErr.Detail = string(respBody)
		}

		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Store service returned error")
		return apiErr
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response JSON: %w", err)
		}
	}
	return nil
}
