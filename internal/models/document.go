package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDocumentStatus 无效的文档状态
	ErrInvalidDocumentStatus = errors.New("invalid document status")
)

// DocumentStatus 文档处理状态类型
type DocumentStatus string

const (
	// DocStatusUploaded 文档已保存，等待处理
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing 文档处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 分块已全部上传
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 文档处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// Valid 判断状态是否合法
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocStatusUploaded, DocStatusProcessing, DocStatusCompleted, DocStatusFailed:
		return true
	}
	return false
}

// ProcessStage 文档处理阶段
type ProcessStage string

const (
	// StageParsing 文本提取阶段
	StageParsing ProcessStage = "parsing"
	// StageChunking 分块阶段
	StageChunking ProcessStage = "chunking"
	// StageUploading 上传分块阶段
	StageUploading ProcessStage = "uploading"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
)

// Document 文档入库记录
type Document struct {
	ID           string         `gorm:"primaryKey" json:"id"`                    // 文档ID，主键
	FileName     string         `gorm:"not null" json:"file_name"`               // 原始文件名
	FileType     string         `gorm:"not null" json:"file_type"`               // 文件类型
	FilePath     string         `gorm:"not null" json:"-"`                       // 原文件在存储中的路径
	FileSize     int64          `gorm:"not null" json:"file_size"`               // 文件大小（字节）
	Status       DocumentStatus `gorm:"not null;index" json:"status"`            // 处理状态
	CurrentStage ProcessStage   `gorm:"size:20" json:"stage,omitempty"`          // 当前处理阶段
	Progress     int            `gorm:"not null;default:0" json:"progress"`      // 处理进度（0-100）
	Error        string         `gorm:"type:text" json:"error,omitempty"`        // 错误信息
	TextLength   int            `gorm:"not null;default:0" json:"text_length"`   // 提取文本的字符数
	ChunkCount   int            `gorm:"not null;default:0" json:"chunk_count"`   // 分块数量
	StoredChunks int            `gorm:"not null;default:0" json:"stored_chunks"` // 存储服务确认的分块数
	TaskID       string         `gorm:"size:64;index" json:"task_id,omitempty"`  // 异步任务ID
	Metadata     datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`     // 分块参数等元数据
	UploadedAt   time.Time      `gorm:"not null;index" json:"uploaded_at"`       // 上传时间
	ProcessedAt  *time.Time     `gorm:"index" json:"processed_at,omitempty"`     // 处理完成时间
	UpdatedAt    time.Time      `gorm:"not null;index" json:"updated_at"`        // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// DocumentChunk 已上传的分块，按文档顺序保存
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	DocumentID string    `gorm:"not null;index:idx_doc_position,priority:1" json:"document_id"`
	Position   int       `gorm:"not null;index:idx_doc_position,priority:2" json:"position"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Length     int       `gorm:"not null" json:"length"` // 字符数
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) (err error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
