package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/goal-map/internal/database"
	"github.com/fyerfyer/goal-map/internal/models"
)

// docRepository 文档仓储实现
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 使用全局数据库连接创建文档仓储
func NewDocumentRepository() DocumentRepository {
	return &docRepository{db: database.MustDB()}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{db: db}
}

// Create 创建文档记录
func (r *docRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.WithContext(ctx).Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档列表，按上传时间倒序
func (r *docRepository) List(ctx context.Context, offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error) {
	var (
		docs  []*models.Document
		total int64
	)

	query := r.db.WithContext(ctx).Model(&models.Document{})
	if status != "" {
		if !status.Valid() {
			return nil, 0, fmt.Errorf("%w: %s", models.ErrInvalidDocumentStatus, status)
		}
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Delete 删除文档记录和分块
func (r *docRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil
	})
}

// UpdateStatus 更新文档状态，完成或失败时记录处理时间
func (r *docRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errorMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidDocumentStatus, status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": now,
	}
	if status == models.DocStatusCompleted || status == models.DocStatusFailed {
		updates["processed_at"] = &now
	}

	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetTaskID 记录异步任务ID
func (r *docRepository) SetTaskID(ctx context.Context, id string, taskID string) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Update("task_id", taskID).Error
}

// UpdateStage 更新处理阶段和进度，进度限制在0-100
func (r *docRepository) UpdateStage(ctx context.Context, id string, stage models.ProcessStage, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_stage": stage,
			"progress":      progress,
			"updated_at":    time.Now(),
		}).Error
}

// ReplaceChunks 在事务中删除旧分块并批量写入新分块
func (r *docRepository) ReplaceChunks(ctx context.Context, docID string, chunks []*models.DocumentChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		for _, c := range chunks {
			c.DocumentID = docID
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// GetChunks 获取文档的所有分块
func (r *docRepository) GetChunks(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	var chunks []*models.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("position ASC").
		Find(&chunks).Error
	return chunks, err
}
