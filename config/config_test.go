package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults 配置文件不存在时使用默认值并写出文件
func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.ProcessTimeout)
	assert.Equal(t, 500, cfg.Chunker.MinSize)
	assert.Equal(t, 800, cfg.Chunker.MaxSize)
	assert.Equal(t, 125, cfg.Chunker.Overlap)
	assert.False(t, cfg.Chunker.KeepShortTail)
	assert.Equal(t, "http://localhost:3001/api/chat", cfg.Chat.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Chat.Timeout)
	assert.Equal(t, "/ragStore", cfg.RagStore.StorePath)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.False(t, cfg.Queue.Enable)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config file should be written")
}

// TestLoad_File 测试读取YAML文件、环境变量覆盖和${VAR}展开
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
chunker:
  min_size: 200
  max_size: 400
  overlap: 50
  keep_short_tail: true
chat:
  endpoint: http://chat.local/api/chat
  api_key: ${GOALMAP_TEST_KEY}
ragstore:
  base_url: http://store.local/api
  timeout: 5s
queue:
  enable: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("GOALMAP_TEST_KEY", "secret")
	t.Setenv("CHAT_MODEL", "qwen-plus")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 200, cfg.Chunker.MinSize)
	assert.True(t, cfg.Chunker.KeepShortTail)
	assert.Equal(t, "http://chat.local/api/chat", cfg.Chat.Endpoint)
	assert.Equal(t, "secret", cfg.Chat.APIKey)
	assert.Equal(t, "qwen-plus", cfg.Chat.Model)
	assert.Equal(t, 5*time.Second, cfg.RagStore.Timeout)
	assert.True(t, cfg.Queue.Enable)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
}

// TestLoad_DotEnv 测试从配置目录的.env加载环境变量
func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOALMAP_DOTENV_KEY=from-dotenv\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("chat:\n  api_key: ${GOALMAP_DOTENV_KEY}\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("GOALMAP_DOTENV_KEY") })

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Chat.APIKey)
}

// TestLoad_InvalidFile 测试无法解析的配置文件
func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("GOALMAP_EXPAND", "value")

	assert.Equal(t, "value", expandEnv("${GOALMAP_EXPAND}"))
	assert.Equal(t, "", expandEnv("${GOALMAP_UNSET_VARIABLE}"))
	assert.Equal(t, "plain", expandEnv("plain"))
	assert.Equal(t, "prefix-${GOALMAP_EXPAND}", expandEnv("prefix-${GOALMAP_EXPAND}"))
}
