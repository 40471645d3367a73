package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyerfyer/goal-map/internal/models"
	"github.com/fyerfyer/goal-map/internal/repository"
	"github.com/sirupsen/logrus"
)

// ErrInvalidTransition 非法的状态转换
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions 允许的状态转换
var validTransitions = map[models.DocumentStatus][]models.DocumentStatus{
	models.DocStatusUploaded: {
		models.DocStatusProcessing,
		models.DocStatusFailed, // 入队失败
	},
	models.DocStatusProcessing: {
		models.DocStatusProcessing, // 中断后重新执行
		models.DocStatusCompleted,
		models.DocStatusFailed,
	},
	models.DocStatusCompleted: {},
	models.DocStatusFailed:    {models.DocStatusProcessing}, // 允许重试
}

// DocumentStatusManager 文档状态管理器
// 负责管理文档入库的生命周期状态
type DocumentStatusManager struct {
	repo   repository.DocumentRepository // 文档仓储接口
	logger *logrus.Logger                // 日志记录器
	mu     sync.Mutex                    // 保证状态转换的原子性
}

// NewDocumentStatusManager 创建文档状态管理器
func NewDocumentStatusManager(repo repository.DocumentRepository, logger *logrus.Logger) *DocumentStatusManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsUploaded 创建已上传状态的文档记录
func (m *DocumentStatusManager) MarkAsUploaded(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc.Status = models.DocStatusUploaded
	doc.Progress = 0

	m.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": doc.FileName,
	}).Info("Marking document as uploaded")

	return m.repo.Create(ctx, doc)
}

// MarkAsProcessing 将文档标记为处理中
func (m *DocumentStatusManager) MarkAsProcessing(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(ctx, docID, models.DocStatusProcessing); err != nil {
		return err
	}

	m.logger.WithField("doc_id", docID).Info("Marking document as processing")
	return m.repo.UpdateStatus(ctx, docID, models.DocStatusProcessing, "")
}

// UpdateStage 更新当前处理阶段和进度
func (m *DocumentStatusManager) UpdateStage(ctx context.Context, docID string, stage models.ProcessStage, progress int) error {
	m.logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"stage":    stage,
		"progress": progress,
	}).Debug("Updating document stage")

	return m.repo.UpdateStage(ctx, docID, stage, progress)
}

// MarkAsCompleted 记录处理结果并将文档标记为完成
func (m *DocumentStatusManager) MarkAsCompleted(ctx context.Context, docID string, textLength, chunkCount, storedChunks int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(ctx, docID, models.DocStatusCompleted); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":        docID,
		"chunk_count":   chunkCount,
		"stored_chunks": storedChunks,
	}).Info("Marking document as completed")

	doc, err := m.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	doc.TextLength = textLength
	doc.ChunkCount = chunkCount
	doc.StoredChunks = storedChunks
	doc.CurrentStage = models.StageCompleted
	doc.Progress = 100
	doc.Error = ""
	if err := m.repo.Update(ctx, doc); err != nil {
		return err
	}
	return m.repo.UpdateStatus(ctx, docID, models.DocStatusCompleted, "")
}

// MarkAsFailed 将文档标记为处理失败
func (m *DocumentStatusManager) MarkAsFailed(ctx context.Context, docID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(ctx, docID, models.DocStatusFailed); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"error":  errorMsg,
	}).Error("Marking document as failed")

	return m.repo.UpdateStatus(ctx, docID, models.DocStatusFailed, errorMsg)
}

// DeleteDocument 删除文档记录
func (m *DocumentStatusManager) DeleteDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("doc_id", docID).Info("Deleting document record")
	return m.repo.Delete(ctx, docID)
}

// transition 检查文档当前状态能否转换到目标状态
func (m *DocumentStatusManager) transition(ctx context.Context, docID string, to models.DocumentStatus) error {
	doc, err := m.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := ValidateStateTransition(doc.Status, to); err != nil {
		return fmt.Errorf("document %s: %w", docID, err)
	}
	return nil
}

// ValidateStateTransition 验证状态转换的有效性
func ValidateStateTransition(from, to models.DocumentStatus) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
