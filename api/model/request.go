package model

import (
	"mime/multipart"

	"github.com/fyerfyer/goal-map/internal/document"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页的起始偏移
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// DocumentUploadRequest 文档上传和预览请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 文件对象
}

// DocumentIDRequest 按ID访问文档的请求
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	Status string `form:"status" json:"status" binding:"omitempty,oneof=uploaded processing completed failed"` // 文档状态
}

// ChunkTextRequest 文本分块请求，未提供的参数使用服务端默认值
type ChunkTextRequest struct {
	Text          string `json:"text"`                                // 待分块文本，为空时返回空列表
	MinSize       *int   `json:"min_size" binding:"omitempty,min=1"`  // 最小分块字符数
	MaxSize       *int   `json:"max_size" binding:"omitempty,min=1"`  // 最大分块字符数
	Overlap       *int   `json:"overlap" binding:"omitempty,min=0"`   // 重叠字符数
	KeepShortTail *bool  `json:"keep_short_tail" binding:"omitempty"` // 是否保留不足最小长度的末尾分块
}

// ChunkerConfig 在默认配置上应用请求中的参数
func (r *ChunkTextRequest) ChunkerConfig(defaults document.ChunkerConfig) document.ChunkerConfig {
	cfg := defaults
	if r.MinSize != nil {
		cfg.MinSize = *r.MinSize
	}
	if r.MaxSize != nil {
		cfg.MaxSize = *r.MaxSize
	}
	if r.Overlap != nil {
		cfg.Overlap = *r.Overlap
	}
	if r.KeepShortTail != nil {
		cfg.KeepShortTail = *r.KeepShortTail
	}
	return cfg
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `form:"query" binding:"required"`               // 检索内容
	TopK  int    `form:"top_k" binding:"omitempty,min=1,max=50"` // 返回数量，默认3
}
