package handler

import (
	"net/http"

	"github.com/fyerfyer/goal-map/api/middleware"
	"github.com/fyerfyer/goal-map/api/model"
	"github.com/fyerfyer/goal-map/internal/models"
	"github.com/fyerfyer/goal-map/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// defaultTopK 检索默认返回数量
const defaultTopK = 3

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	documentService *services.DocumentService // 文档服务
	logger          *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid document upload request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "未提供文件"))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": req.File.Filename,
		}).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法打开上传的文件",
		))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Ingest(c.Request.Context(), file, req.File.Filename)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": doc.FileName,
		"status":   doc.Status,
	}).Info("Document accepted")

	c.JSON(http.StatusOK, model.NewSuccessResponse(doc))
}

// PreviewDocument 提取文件文本并返回分块预览
// POST /api/documents/preview
func (h *DocumentHandler) PreviewDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "未提供文件"))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithError(err).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法打开上传的文件",
		))
		return
	}
	defer file.Close()

	preview, err := h.documentService.Preview(c.Request.Context(), file, req.File.Filename)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(preview))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	docs, total, err := h.documentService.List(
		c.Request.Context(),
		req.Offset(),
		req.GetPageSize(),
		models.DocumentStatus(req.Status),
	)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: docs,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocument 获取文档状态
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(doc))
}

// GetDocumentChunks 获取文档已上传的分块
// GET /api/documents/:id/chunks
func (h *DocumentHandler) GetDocumentChunks(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	chunks, err := h.documentService.GetChunks(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.DocumentChunksResponse{
		ID:     req.ID,
		Total:  len(chunks),
		Chunks: chunks,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), req.ID); err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.DocumentDeleteResponse{
		Success: true,
		ID:      req.ID,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ChunkText 按请求参数对原始文本分块
// POST /api/chunks
func (h *DocumentHandler) ChunkText(c *gin.Context) {
	var req model.ChunkTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chunk request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的请求参数"))
		return
	}

	cfg := req.ChunkerConfig(h.documentService.ChunkerConfig())
	chunks, err := h.documentService.ChunkText(c.Request.Context(), req.Text, cfg)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.ChunkTextResponse{
		ChunkCount: len(chunks),
		Chunks:     services.NewChunkInfos(chunks),
		Config:     model.NewChunkConfigInfo(cfg),
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// Search 在向量存储服务中检索
// GET /api/search
func (h *DocumentHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "检索内容不能为空"))
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = defaultTopK
	}

	results, err := h.documentService.Search(c.Request.Context(), req.Query, topK)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	if results == nil {
		results = []string{}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.SearchResponse{
		Query:   req.Query,
		Results: results,
	}))
}

// Health 检查网关和存储服务状态
// GET /api/health
func (h *DocumentHandler) Health(c *gin.Context) {
	resp := model.HealthResponse{Status: "ok", Store: "ok"}

	status, err := h.documentService.StoreHealth(c.Request.Context())
	switch {
	case err != nil:
		h.logger.WithError(err).Warn("Store health check failed")
		resp.Store = "unavailable"
	case status.Status != "":
		resp.Store = status.Status
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
