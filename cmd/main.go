package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/goal-map/api"
	"github.com/fyerfyer/goal-map/api/handler"
	"github.com/fyerfyer/goal-map/api/middleware"
	appconfig "github.com/fyerfyer/goal-map/config"
	"github.com/fyerfyer/goal-map/internal/cache"
	"github.com/fyerfyer/goal-map/internal/database"
	"github.com/fyerfyer/goal-map/internal/document"
	"github.com/fyerfyer/goal-map/internal/llm"
	"github.com/fyerfyer/goal-map/internal/ragstore"
	"github.com/fyerfyer/goal-map/internal/repository"
	"github.com/fyerfyer/goal-map/internal/services"
	"github.com/fyerfyer/goal-map/pkg/storage"
	"github.com/fyerfyer/goal-map/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 命令行选项，非零值覆盖配置文件
type options struct {
	ConfigFile   string        // 配置文件路径
	Port         int           // 服务端口
	Mode         string        // 运行模式 (debug/release)
	LogLevel     string        // 日志级别
	QueueEnabled bool          // 是否启用异步入库
	ReadTimeout  time.Duration // 读取超时
}

func main() {
	opts := parseFlags()

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, opts)

	gin.SetMode(cfg.Server.Mode)

	logger, closer, err := setupLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info("Starting goal map gateway...")

	// 分块参数在启动时校验
	chunker, err := document.NewChunker(document.ChunkerConfig{
		MinSize:       cfg.Chunker.MinSize,
		MaxSize:       cfg.Chunker.MaxSize,
		Overlap:       cfg.Chunker.Overlap,
		KeepShortTail: cfg.Chunker.KeepShortTail,
	})
	if err != nil {
		logger.Fatalf("Invalid chunker configuration: %v", err)
	}

	if err := database.Setup(&database.Config{
		Type:         cfg.Database.Type,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		MaxLifetime:  time.Hour,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	chatClient, err := setupChat(cfg.Chat, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize chat client: %v", err)
	}

	storeClient := ragstore.NewClient(&ragstore.Config{
		BaseURL:    cfg.RagStore.BaseURL,
		StorePath:  cfg.RagStore.StorePath,
		SearchPath: cfg.RagStore.SearchPath,
		Timeout:    cfg.RagStore.Timeout,
	}, logger)

	docOpts := []services.DocumentOption{
		services.WithLogger(logger),
		services.WithTimeout(cfg.Server.ProcessTimeout),
	}

	if cfg.Cache.Enable {
		chunkCache, err := setupCache(cfg.Cache)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		docOpts = append(docOpts, services.WithChunkCache(chunkCache, time.Duration(cfg.Cache.TTL)*time.Second))
	}

	var (
		queue  *taskqueue.RedisQueue
		worker *taskqueue.RedisWorker
	)
	if cfg.Queue.Enable {
		queue, worker, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		docOpts = append(docOpts, services.WithTaskQueue(queue))
		logger.Info("Document ingestion will use async task queue")
	}

	documentService := services.NewDocumentService(
		fileStorage,
		repository.NewDocumentRepository(),
		storeClient,
		chunker,
		docOpts...,
	)
	chatService := services.NewChatService(chatClient, services.WithChatLogger(logger))

	if worker != nil {
		worker.RegisterHandler(taskqueue.TaskDocumentIngest, documentService)
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	r := api.SetupRouter(
		handler.NewDocumentHandler(documentService),
		handler.NewChatHandler(chatService),
	)

	// 流式对话不设置写超时
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: opts.ReadTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.IntVar(&opts.Port, "port", 0, "Server port (overrides server.port)")
	flag.StringVar(&opts.Mode, "mode", "", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.BoolVar(&opts.QueueEnabled, "queue", false, "Enable async ingestion through the task queue")
	flag.DurationVar(&opts.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")

	flag.Parse()
	return opts
}

// applyFlags 用命令行上明确设置的参数覆盖配置文件
func applyFlags(cfg *appconfig.Config, opts options) {
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Mode != "" {
		cfg.Server.Mode = opts.Mode
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.QueueEnabled {
		cfg.Queue.Enable = true
	}
}

// setupLogger 设置日志系统
func setupLogger(cfg appconfig.LogConfig) (*logrus.Logger, io.Closer, error) {
	closer, err := middleware.ConfigureLogger(middleware.LogConfig{
		Level:      cfg.Level,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, err
	}
	return middleware.GetLogger(), closer, nil
}

// setupStorage 设置原文件存储
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type:  cfg.Type,
		Local: storage.LocalConfig{Path: cfg.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupChat 设置推理服务客户端
func setupChat(cfg appconfig.ChatConfig, logger *logrus.Logger) (llm.Client, error) {
	client, err := llm.NewClient(llm.ProviderHTTP,
		llm.WithEndpoint(cfg.Endpoint),
		llm.WithAPIKey(cfg.APIKey),
		llm.WithModel(cfg.Model),
		llm.WithAgent(cfg.Agent),
		llm.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, err
	}
	if c, ok := client.(*llm.HTTPClient); ok {
		c.SetLogger(logger)
	}
	return client, nil
}

// setupCache 设置分块结果缓存
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	return cache.NewCache(cache.Config{
		Type:            cfg.Type,
		RedisAddr:       cfg.Address,
		RedisPassword:   cfg.Password,
		RedisDB:         cfg.DB,
		KeyPrefix:       "goalmap",
		DefaultTTL:      time.Duration(cfg.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	})
}

// setupTaskQueue 设置任务队列和工作者
func setupTaskQueue(cfg appconfig.QueueConfig, logger *logrus.Logger) (*taskqueue.RedisQueue, *taskqueue.RedisWorker, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	if cfg.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Concurrency
	}

	logger.WithFields(logrus.Fields{
		"redis_addr":  cfg.RedisAddr,
		"concurrency": queueConfig.Concurrency,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewRedisQueue(queueConfig)
	if err != nil {
		return nil, nil, err
	}
	queue.SetLogger(logger)

	return queue, taskqueue.NewRedisWorker(queue, queueConfig), nil
}
