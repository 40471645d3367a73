package model

import (
	"github.com/fyerfyer/goal-map/internal/document"
	"github.com/fyerfyer/goal-map/internal/models"
	"github.com/fyerfyer/goal-map/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64              `json:"total"`     // 总数量
	Page      int                `json:"page"`      // 当前页码
	PageSize  int                `json:"page_size"` // 每页大小
	Documents []*models.Document `json:"documents"` // 文档列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	ID      string `json:"id"`      // 文档ID
}

// DocumentChunksResponse 文档分块响应
type DocumentChunksResponse struct {
	ID     string                  `json:"id"`     // 文档ID
	Total  int                     `json:"total"`  // 分块数量
	Chunks []*models.DocumentChunk `json:"chunks"` // 按位置排序的分块
}

// ChunkConfigInfo 分块参数
type ChunkConfigInfo struct {
	MinSize       int  `json:"min_size"`
	MaxSize       int  `json:"max_size"`
	Overlap       int  `json:"overlap"`
	KeepShortTail bool `json:"keep_short_tail"`
}

// ChunkTextResponse 文本分块响应
type ChunkTextResponse struct {
	ChunkCount int                  `json:"chunk_count"` // 分块数量
	Chunks     []services.ChunkInfo `json:"chunks"`      // 分块列表
	Config     ChunkConfigInfo      `json:"config"`      // 实际使用的参数
}

// NewChunkConfigInfo 转换分块参数
func NewChunkConfigInfo(cfg document.ChunkerConfig) ChunkConfigInfo {
	return ChunkConfigInfo{
		MinSize:       cfg.MinSize,
		MaxSize:       cfg.MaxSize,
		Overlap:       cfg.Overlap,
		KeepShortTail: cfg.KeepShortTail,
	}
}

// SearchResponse 检索响应
type SearchResponse struct {
	Query   string   `json:"query"`   // 检索内容
	Results []string `json:"results"` // 相关分块
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string `json:"status"` // 网关状态
	Store  string `json:"store"`  // 存储服务状态
}
