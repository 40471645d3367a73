package api

import (
	"net/http"

	"github.com/fyerfyer/goal-map/api/handler"
	"github.com/fyerfyer/goal-map/api/middleware"
	"github.com/fyerfyer/goal-map/api/model"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	docHandler *handler.DocumentHandler,
	chatHandler *handler.ChatHandler,
) *gin.Engine {
	if err := model.RegisterValidators(); err != nil {
		middleware.GetLogger().WithError(err).Fatal("Failed to register request validators")
	}

	router := gin.New()

	// 应用全局中间件
	router.Use(Cors())
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		// 文档入库API
		docGroup := api.Group("/documents")
		{
			// 上传文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocument)

			// 分块预览 - POST /api/documents/preview
			docGroup.POST("/preview", docHandler.PreviewDocument)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 获取文档状态 - GET /api/documents/:id
			docGroup.GET("/:id", docHandler.GetDocument)

			// 获取文档分块 - GET /api/documents/:id/chunks
			docGroup.GET("/:id/chunks", docHandler.GetDocumentChunks)

			// 删除文档 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.DeleteDocument)
		}

		// 文本分块 - POST /api/chunks
		api.POST("/chunks", docHandler.ChunkText)

		// 检索 - GET /api/search
		api.GET("/search", docHandler.Search)

		// 对话API
		chatGroup := api.Group("/chat")
		{
			// 流式对话 - POST /api/chat
			chatGroup.POST("", chatHandler.StreamChat)

			// 非流式对话 - POST /api/chat/complete
			chatGroup.POST("/complete", chatHandler.CompleteChat)
		}

		// 健康检查 - GET /api/health
		api.GET("/health", docHandler.Health)
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
