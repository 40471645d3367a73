package repository

import (
	"context"

	"github.com/fyerfyer/goal-map/internal/models"
)

// DocumentRepository 文档仓储接口
// 负责入库记录和已上传分块的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(ctx context.Context, doc *models.Document) error

	// Update 更新文档记录
	Update(ctx context.Context, doc *models.Document) error

	// GetByID 根据ID获取文档，不存在时返回models.ErrDocumentNotFound
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// List 列出文档，status为空时不过滤
	List(ctx context.Context, offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error)

	// Delete 删除文档及其分块
	Delete(ctx context.Context, id string) error

	// UpdateStatus 更新文档状态
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errorMsg string) error

	// SetTaskID 记录异步任务ID，只更新该列
	SetTaskID(ctx context.Context, id string, taskID string) error

	// UpdateStage 更新处理阶段和进度
	UpdateStage(ctx context.Context, id string, stage models.ProcessStage, progress int) error

	// ReplaceChunks 用新的分块替换文档的全部分块
	ReplaceChunks(ctx context.Context, docID string, chunks []*models.DocumentChunk) error

	// GetChunks 按位置顺序获取文档的分块
	GetChunks(ctx context.Context, docID string) ([]*models.DocumentChunk, error)
}
