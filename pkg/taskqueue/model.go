package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskDocumentIngest 文档入库任务：解析、分块并上传到向量存储服务
	TaskDocumentIngest TaskType = "document_ingest"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	DocumentID  string          `json:"document_id"`  // 关联的文档ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 已执行次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// IngestPayload 文档入库任务载荷
type IngestPayload struct {
	DocumentID string `json:"document_id"` // 文档ID
	FileName   string `json:"file_name"`   // 原始文件名
}

// IngestResult 文档入库任务结果
type IngestResult struct {
	ChunkCount   int `json:"chunk_count"`   // 分块数量
	StoredChunks int `json:"stored_chunks"` // 存储服务确认的分块数量
}

// Finished 任务是否已结束
func (t *Task) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
