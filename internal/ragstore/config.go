package ragstore

import "time"

// Config 存储服务连接配置
type Config struct {
	BaseURL    string        // 存储服务基础URL
	StorePath  string        // 上传分块的路径
	SearchPath string        // 检索路径
	Timeout    time.Duration // 请求超时时间
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:3001/api",
		StorePath:  "/ragStore",
		SearchPath: "/search",
		Timeout:    30 * time.Second,
	}
}

// WithBaseURL 设置基础URL
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithStorePath 设置上传路径
func (c *Config) WithStorePath(path string) *Config {
	c.StorePath = path
	return c
}

// WithTimeout 设置请求超时时间
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}
