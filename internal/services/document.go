package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/fyerfyer/goal-map/internal/cache"
	"github.com/fyerfyer/goal-map/internal/document"
	"github.com/fyerfyer/goal-map/internal/models"
	"github.com/fyerfyer/goal-map/internal/ragstore"
	"github.com/fyerfyer/goal-map/internal/repository"
	"github.com/fyerfyer/goal-map/pkg/storage"
	"github.com/fyerfyer/goal-map/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// previewRunes 预览中展示的提取文本长度
const previewRunes = 500

// ErrEmptyFileName 文件名为空
var ErrEmptyFileName = errors.New("file name cannot be empty")

// ChunkInfo 单个分块及其字符数
type ChunkInfo struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// NewChunkInfos 为分块附加序号和字符数
func NewChunkInfos(chunks []string) []ChunkInfo {
	infos := make([]ChunkInfo, len(chunks))
	for i, chunk := range chunks {
		infos[i] = ChunkInfo{
			Index:  i,
			Text:   chunk,
			Length: utf8.RuneCountInString(chunk),
		}
	}
	return infos
}

// ChunkPreview 文件分块预览，不上传
type ChunkPreview struct {
	FileName    string      `json:"file_name"`
	TextPreview string      `json:"text_preview"` // 提取文本的前500个字符
	TotalChars  int         `json:"total_chars"`  // 提取文本的字符数
	ChunkCount  int         `json:"chunk_count"`
	Chunks      []ChunkInfo `json:"chunks"`
}

// DocumentService 文档入库服务
// 负责协调文本提取、分块、缓存和上传到向量存储服务
type DocumentService struct {
	storage   storage.Storage               // 原文件存储
	repo      repository.DocumentRepository // 入库记录存储
	status    *DocumentStatusManager        // 状态管理器
	store     ragstore.Client               // 向量存储服务客户端
	chunker   *document.Chunker             // 默认分块器
	cache     cache.Cache                   // 分块结果缓存，可为空
	cacheTTL  time.Duration                 // 缓存过期时间
	taskQueue taskqueue.Queue               // 任务队列，为空时同步处理
	timeout   time.Duration                 // 单个文档的处理超时
	logger    *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建文档入库服务
func NewDocumentService(
	fileStorage storage.Storage,
	repo repository.DocumentRepository,
	store ragstore.Client,
	chunker *document.Chunker,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage: fileStorage,
		repo:    repo,
		store:   store,
		chunker: chunker,
		timeout: 5 * time.Minute,
		logger:  logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.status = NewDocumentStatusManager(repo, srv.logger)
	return srv
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithChunkCache 启用分块结果缓存
func WithChunkCache(c cache.Cache, ttl time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithTaskQueue 设置任务队列，启用异步处理
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
	}
}

// ChunkerConfig 返回默认分块参数
func (s *DocumentService) ChunkerConfig() document.ChunkerConfig {
	return s.chunker.Config()
}

// ChunkText 使用给定参数对文本分块，结果按文本摘要和参数缓存
func (s *DocumentService) ChunkText(ctx context.Context, text string, config document.ChunkerConfig) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil {
		key = cache.ChunkKey(text, cache.ChunkParams{
			MinSize:       config.MinSize,
			MaxSize:       config.MaxSize,
			Overlap:       config.Overlap,
			KeepShortTail: config.KeepShortTail,
		})
		chunks, found, err := cache.GetChunks(ctx, s.cache, key)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read chunk cache")
		} else if found {
			s.logger.WithField("chunk_count", len(chunks)).Debug("Chunk cache hit")
			return chunks, nil
		}
	}

	chunks, err := document.ChunkText(text, config)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.SetChunks(ctx, s.cache, key, chunks, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to write chunk cache")
		}
	}
	return chunks, nil
}

// Preview 提取文件文本并分块，不保存也不上传
func (s *DocumentService) Preview(ctx context.Context, reader io.Reader, filename string) (*ChunkPreview, error) {
	if filename == "" {
		return nil, ErrEmptyFileName
	}

	text, err := document.ExtractText(reader, filename)
	if err != nil {
		return nil, err
	}

	chunks, err := s.ChunkText(ctx, text, s.chunker.Config())
	if err != nil {
		return nil, err
	}

	preview := &ChunkPreview{
		FileName:    filename,
		TextPreview: truncateRunes(text, previewRunes),
		TotalChars:  utf8.RuneCountInString(text),
		ChunkCount:  len(chunks),
		Chunks:      NewChunkInfos(chunks),
	}

	s.logger.WithFields(logrus.Fields{
		"filename":    filename,
		"total_chars": preview.TotalChars,
		"chunk_count": preview.ChunkCount,
	}).Info("Document preview generated")

	return preview, nil
}

// Ingest 保存原文件并创建入库记录
// 配置了任务队列时异步处理，否则在当前请求内完成处理
func (s *DocumentService) Ingest(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	if filename == "" {
		return nil, ErrEmptyFileName
	}
	if _, err := document.ParserFactory(filename); err != nil {
		return nil, err
	}

	info, err := s.storage.Save(ctx, reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	config := s.chunker.Config()
	meta, err := json.Marshal(map[string]interface{}{
		"min_size":        config.MinSize,
		"max_size":        config.MaxSize,
		"overlap":         config.Overlap,
		"keep_short_tail": config.KeepShortTail,
		"mime_type":       info.MimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	doc := &models.Document{
		ID:       info.ID,
		FileName: filename,
		FileType: string(document.DetectContentType(filename)),
		FilePath: info.Path,
		FileSize: info.Size,
		Metadata: datatypes.JSON(meta),
	}
	if err := s.status.MarkAsUploaded(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, info.Path); delErr != nil {
			s.logger.WithError(delErr).Warn("Failed to remove stored file after record creation failed")
		}
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	if s.taskQueue != nil {
		taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskDocumentIngest, doc.ID, taskqueue.IngestPayload{
			DocumentID: doc.ID,
			FileName:   filename,
		})
		if err != nil {
			return nil, s.failDocument(ctx, doc.ID, fmt.Errorf("failed to enqueue ingest task: %w", err))
		}

		// 工作者可能已开始处理，只更新任务ID列
		doc.TaskID = taskID
		if err := s.repo.SetTaskID(ctx, doc.ID, taskID); err != nil {
			s.logger.WithError(err).WithField("doc_id", doc.ID).Warn("Failed to record task ID")
		}

		s.logger.WithFields(logrus.Fields{
			"doc_id":  doc.ID,
			"task_id": taskID,
		}).Info("Document ingest task enqueued")
		return doc, nil
	}

	if _, err := s.Process(ctx, doc.ID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, doc.ID)
}

// Process 对已保存的文档执行解析、分块和上传
func (s *DocumentService) Process(ctx context.Context, docID string) (*taskqueue.IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"filename": doc.FileName,
	})
	log.Info("Starting document processing")

	if err := s.status.MarkAsProcessing(ctx, docID); err != nil {
		return nil, err
	}

	s.updateStage(ctx, docID, models.StageParsing, 10)
	text, err := s.extract(ctx, doc)
	if err != nil {
		return nil, s.failDocument(ctx, docID, err)
	}

	s.updateStage(ctx, docID, models.StageChunking, 40)
	chunks, err := s.ChunkText(ctx, text, s.chunker.Config())
	if err != nil {
		return nil, s.failDocument(ctx, docID, err)
	}

	// 先保存分块记录：保存失败时尚未上传，重试不会重复上传分块
	records := make([]*models.DocumentChunk, len(chunks))
	for i, chunk := range chunks {
		records[i] = &models.DocumentChunk{
			Position: i,
			Text:     chunk,
			Length:   utf8.RuneCountInString(chunk),
		}
	}
	if err := s.repo.ReplaceChunks(ctx, docID, records); err != nil {
		return nil, s.failDocument(ctx, docID, fmt.Errorf("failed to save chunks: %w", err))
	}

	s.updateStage(ctx, docID, models.StageUploading, 70)
	stored := 0
	if len(chunks) > 0 {
		res, err := s.store.Store(ctx, chunks)
		if err != nil {
			return nil, s.failDocument(ctx, docID, fmt.Errorf("failed to upload chunks: %w", err))
		}
		stored = res.StoredChunks
	}

	if err := s.status.MarkAsCompleted(ctx, docID, utf8.RuneCountInString(text), len(chunks), stored); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"chunk_count":   len(chunks),
		"stored_chunks": stored,
	}).Info("Document processing completed successfully")

	return &taskqueue.IngestResult{
		ChunkCount:   len(chunks),
		StoredChunks: stored,
	}, nil
}

// ProcessTask 实现taskqueue.Handler接口
func (s *DocumentService) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.IngestPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, err
	}
	if payload.DocumentID == "" {
		payload.DocumentID = task.DocumentID
	}
	return s.Process(ctx, payload.DocumentID)
}

// GetTaskTypes 实现taskqueue.Handler接口
func (s *DocumentService) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskDocumentIngest}
}

// Get 获取文档记录
func (s *DocumentService) Get(ctx context.Context, docID string) (*models.Document, error) {
	return s.repo.GetByID(ctx, docID)
}

// List 分页列出文档记录
func (s *DocumentService) List(ctx context.Context, offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error) {
	return s.repo.List(ctx, offset, limit, status)
}

// GetChunks 获取文档已上传的分块
func (s *DocumentService) GetChunks(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	if _, err := s.repo.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	return s.repo.GetChunks(ctx, docID)
}

// Delete 删除文档记录、分块和原文件
// 已上传到向量存储服务的分块不会被删除
func (s *DocumentService) Delete(ctx context.Context, docID string) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.TaskID != "" && s.taskQueue != nil {
		if err := s.taskQueue.DeleteTask(ctx, doc.TaskID); err != nil && !errors.Is(err, taskqueue.ErrTaskNotFound) {
			s.logger.WithError(err).WithField("task_id", doc.TaskID).Warn("Failed to delete ingest task")
		}
	}

	if err := s.storage.Delete(ctx, doc.FilePath); err != nil {
		// 文件可能已被删除，不中断流程
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to delete file from storage")
	}

	if err := s.status.DeleteDocument(ctx, docID); err != nil {
		return err
	}

	s.logger.WithField("doc_id", docID).Info("Document deleted successfully")
	return nil
}

// Search 在向量存储服务中检索相关分块
func (s *DocumentService) Search(ctx context.Context, query string, topK int) ([]string, error) {
	return s.store.Search(ctx, query, topK)
}

// StoreHealth 检查向量存储服务状态
func (s *DocumentService) StoreHealth(ctx context.Context) (*ragstore.HealthStatus, error) {
	return s.store.Health(ctx)
}

// extract 从存储中读取原文件并提取文本
func (s *DocumentService) extract(ctx context.Context, doc *models.Document) (string, error) {
	reader, err := s.storage.Get(ctx, doc.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	text, err := document.ExtractText(reader, doc.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// updateStage 更新处理阶段，失败只记录日志
func (s *DocumentService) updateStage(ctx context.Context, docID string, stage models.ProcessStage, progress int) {
	if err := s.status.UpdateStage(ctx, docID, stage, progress); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to update document stage")
	}
}

// failDocument 将文档标记为失败，返回包装后的原始错误
func (s *DocumentService) failDocument(ctx context.Context, docID string, cause error) error {
	// 超时后仍需写入失败状态
	if err := s.status.MarkAsFailed(context.WithoutCancel(ctx), docID, cause.Error()); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Error("Failed to mark document as failed")
	}
	return fmt.Errorf("document %s processing failed: %w", docID, cause)
}

// truncateRunes 截取前n个字符
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
