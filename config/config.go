package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Chunker  ChunkerConfig  `mapstructure:"chunker"`
	Chat     ChatConfig     `mapstructure:"chat"`
	RagStore RagStoreConfig `mapstructure:"ragstore"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`             // 服务器主机
	Port            int           `mapstructure:"port"`             // 服务器端口
	Mode            string        `mapstructure:"mode"`             // gin运行模式：debug, release, test
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`  // 单个文档的处理超时
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 优雅退出的等待时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个文件最大大小
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧文件保留天数
}

// ChunkerConfig 分块参数
type ChunkerConfig struct {
	MinSize       int  `mapstructure:"min_size"`        // 分块最小字符数
	MaxSize       int  `mapstructure:"max_size"`        // 分块最大字符数
	Overlap       int  `mapstructure:"overlap"`         // 相邻分块重叠字符数
	KeepShortTail bool `mapstructure:"keep_short_tail"` // 是否保留过短的末尾分块
}

// ChatConfig 推理服务配置
type ChatConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // 流式对话接口地址
	Model    string        `mapstructure:"model"`    // 默认模型
	Agent    string        `mapstructure:"agent"`    // 默认智能体标识
	APIKey   string        `mapstructure:"api_key"`  // API密钥，支持${VAR}
	Timeout  time.Duration `mapstructure:"timeout"`  // 等待响应头的超时时间
}

// RagStoreConfig 检索存储服务配置
type RagStoreConfig struct {
	BaseURL    string        `mapstructure:"base_url"`    // 服务基础URL
	StorePath  string        `mapstructure:"store_path"`  // 上传分块的路径
	SearchPath string        `mapstructure:"search_path"` // 检索路径
	Timeout    time.Duration `mapstructure:"timeout"`     // 请求超时时间
}

// StorageConfig 原文件存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// CacheConfig 分块结果缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前只支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用异步入库
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
}

// Load 从文件和环境变量加载配置
// 文件不存在时使用默认值并写出默认配置文件
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// .env 只补充尚未设置的环境变量
	envFile := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Config file not found at %s, using defaults", configPath)
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err == nil {
			if err := v.WriteConfigAs(configPath); err != nil {
				log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
			}
		}
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖，如 CHAT_ENDPOINT 覆盖 chat.endpoint
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandSecrets(&config)
	return &config, nil
}

// expandSecrets 展开形如${VAR}的配置值
func expandSecrets(cfg *Config) {
	for _, field := range []*string{
		&cfg.Chat.APIKey,
		&cfg.Chat.Endpoint,
		&cfg.RagStore.BaseURL,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
	} {
		*field = expandEnv(*field)
	}
}

// expandEnv 整个值为${VAR}时替换为环境变量的值，未设置时为空
func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	return os.Getenv(value[2 : len(value)-1])
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.process_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// 分块默认配置
	v.SetDefault("chunker.min_size", 500)
	v.SetDefault("chunker.max_size", 800)
	v.SetDefault("chunker.overlap", 125)
	v.SetDefault("chunker.keep_short_tail", false)

	// 推理服务默认配置
	v.SetDefault("chat.endpoint", "http://localhost:3001/api/chat")
	v.SetDefault("chat.model", "gpt-3.5-turbo")
	v.SetDefault("chat.agent", "")
	v.SetDefault("chat.api_key", "${CHAT_API_KEY}")
	v.SetDefault("chat.timeout", "60s")

	// 检索存储服务默认配置
	v.SetDefault("ragstore.base_url", "http://localhost:3001/api")
	v.SetDefault("ragstore.store_path", "/ragStore")
	v.SetDefault("ragstore.search_path", "/search")
	v.SetDefault("ragstore.timeout", "30s")

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "goalmap")
	v.SetDefault("storage.use_ssl", false)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.ttl", 3600) // 1小时

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/goalmap.db")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
}
