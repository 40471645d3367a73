package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/fyerfyer/goal-map/api/handler"
	"github.com/fyerfyer/goal-map/api/middleware"
	"github.com/fyerfyer/goal-map/internal/database"
	"github.com/fyerfyer/goal-map/internal/document"
	"github.com/fyerfyer/goal-map/internal/llm"
	"github.com/fyerfyer/goal-map/internal/ragstore"
	"github.com/fyerfyer/goal-map/internal/repository"
	"github.com/fyerfyer/goal-map/internal/services"
	"github.com/fyerfyer/goal-map/pkg/storage"
)

const sampleText = "Goal one.\n\nGoal two."

// apiTestEnv API测试环境
type apiTestEnv struct {
	router *gin.Engine
	store  *ragstore.MockClient
	llm    *llm.MockClient
}

func setupAPITestEnv(t *testing.T) *apiTestEnv {
	gin.SetMode(gin.TestMode)
	middleware.GetLogger().SetLevel(logrus.WarnLevel)

	db, err := database.Open(&database.Config{
		Type:         "sqlite",
		DSN:          filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		MaxLifetime:  time.Hour,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	fileStorage, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	chunker, err := document.NewChunker(document.DefaultChunkerConfig())
	require.NoError(t, err)

	store := ragstore.NewMockClient(t)
	llmClient := llm.NewMockClient(t)

	docService := services.NewDocumentService(
		fileStorage,
		repository.NewDocumentRepositoryWithDB(db),
		store,
		chunker,
		services.WithTimeout(5*time.Second),
	)
	chatService := services.NewChatService(llmClient)

	return &apiTestEnv{
		router: SetupRouter(handler.NewDocumentHandler(docService), handler.NewChatHandler(chatService)),
		store:  store,
		llm:    llmClient,
	}
}

func (env *apiTestEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// TestDocumentLifecycle 测试上传、查询、分块列表和删除
func TestDocumentLifecycle(t *testing.T) {
	env := setupAPITestEnv(t)
	env.store.On("Store", mock.Anything, []string{sampleText}).
		Return(&ragstore.StoreResult{StoredChunks: 1}, nil).Once()

	w := env.do(uploadRequest(t, "/api/documents", "goals.txt", sampleText))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Equal(t, int64(0), gjson.Get(body, "code").Int())
	assert.Equal(t, "completed", gjson.Get(body, "data.status").String())
	assert.Equal(t, int64(1), gjson.Get(body, "data.chunk_count").Int())
	docID := gjson.Get(body, "data.id").String()
	require.NotEmpty(t, docID)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "goals.txt", gjson.Get(w.Body.String(), "data.file_name").String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+docID+"/chunks", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.total").Int())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/documents?status=completed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.total").Int())
	assert.Equal(t, int64(10), gjson.Get(w.Body.String(), "data.page_size").Int())

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.success").Bool())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(http.StatusNotFound), gjson.Get(w.Body.String(), "code").Int())
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "trace_id").String())
}

// TestUploadErrors 测试上传的错误响应
func TestUploadErrors(t *testing.T) {
	env := setupAPITestEnv(t)

	t.Run("unsupported type", func(t *testing.T) {
		w := env.do(uploadRequest(t, "/api/documents", "goals.xlsx", "a,b"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := env.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		env.store.On("Store", mock.Anything, []string{sampleText}).
			Return(nil, &ragstore.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}).Once()

		w := env.do(uploadRequest(t, "/api/documents", "notes.txt", sampleText))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/documents?status=archived", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestPreviewDocument 测试分块预览不调用存储服务
func TestPreviewDocument(t *testing.T) {
	env := setupAPITestEnv(t)

	w := env.do(uploadRequest(t, "/api/documents/preview", "goals.txt", sampleText))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "data.chunk_count").Int())
	assert.Equal(t, int64(20), gjson.Get(body, "data.total_chars").Int())
	env.store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
}

// TestChunkText 测试原始文本分块
func TestChunkText(t *testing.T) {
	env := setupAPITestEnv(t)

	t.Run("default config", func(t *testing.T) {
		w := env.do(jsonRequest(t, http.MethodPost, "/api/chunks", map[string]interface{}{"text": sampleText}))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Equal(t, int64(1), gjson.Get(body, "data.chunk_count").Int())
		assert.Equal(t, sampleText, gjson.Get(body, "data.chunks.0.text").String())
		assert.Equal(t, int64(500), gjson.Get(body, "data.config.min_size").Int())
	})

	t.Run("empty text", func(t *testing.T) {
		w := env.do(jsonRequest(t, http.MethodPost, "/api/chunks", map[string]interface{}{"text": ""}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "data.chunk_count").Int())
	})

	t.Run("invalid config", func(t *testing.T) {
		w := env.do(jsonRequest(t, http.MethodPost, "/api/chunks", map[string]interface{}{
			"text":     sampleText,
			"min_size": 100,
			"max_size": 50,
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "分块参数无效", gjson.Get(w.Body.String(), "message").String())
	})
}

// TestSearchAndHealth 测试检索和健康检查
func TestSearchAndHealth(t *testing.T) {
	env := setupAPITestEnv(t)

	env.store.On("Search", mock.Anything, "goal", 3).Return([]string{"Goal one."}, nil).Once()
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/search?query=goal", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Goal one.", gjson.Get(w.Body.String(), "data.results.0").String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.store.On("Health", mock.Anything).Return(&ragstore.HealthStatus{Status: "ok"}, nil).Once()
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "data.store").String())

	env.store.On("Health", mock.Anything).Return(nil, ragstore.ErrUnavailable).Once()
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unavailable", gjson.Get(w.Body.String(), "data.store").String())
}

// TestStreamChat 测试SSE转发
func TestStreamChat(t *testing.T) {
	userMessages := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	request := map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}

	t.Run("deltas are relayed", func(t *testing.T) {
		env := setupAPITestEnv(t)
		env.llm.On("ChatStream", mock.Anything, userMessages, mock.Anything).
			Return(llm.SliceSeq([]string{"Hel", "lo"}, nil), nil).Once()

		w := env.do(jsonRequest(t, http.MethodPost, "/api/chat", request))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Equal(t,
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"+
				"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"+
				"data: [DONE]\n\n",
			w.Body.String())
	})

	t.Run("transport error before first delta", func(t *testing.T) {
		env := setupAPITestEnv(t)
		env.llm.On("ChatStream", mock.Anything, userMessages, mock.Anything).
			Return(nil, llm.NewLLMError(llm.ErrCodeNetworkError, llm.ErrMsgNetworkError)).Once()

		w := env.do(jsonRequest(t, http.MethodPost, "/api/chat", request))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "推理服务不可用", gjson.Get(w.Body.String(), "message").String())
	})

	t.Run("error after streaming started", func(t *testing.T) {
		env := setupAPITestEnv(t)
		env.llm.On("ChatStream", mock.Anything, userMessages, mock.Anything).
			Return(llm.SliceSeq([]string{"Hel"}, errors.New("connection reset")), nil).Once()

		w := env.do(jsonRequest(t, http.MethodPost, "/api/chat", request))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "data: {\"error\":\"connection reset\"}\n\n")
		assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
	})

	t.Run("invalid role", func(t *testing.T) {
		env := setupAPITestEnv(t)
		w := env.do(jsonRequest(t, http.MethodPost, "/api/chat", map[string]interface{}{
			"messages": []map[string]string{{"role": "robot", "content": "hi"}},
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("last message from assistant", func(t *testing.T) {
		env := setupAPITestEnv(t)
		w := env.do(jsonRequest(t, http.MethodPost, "/api/chat", map[string]interface{}{
			"messages": []map[string]string{{"role": "assistant", "content": "hi"}},
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "对话消息无效", gjson.Get(w.Body.String(), "message").String())
	})
}

// TestCompleteChat 测试非流式对话
func TestCompleteChat(t *testing.T) {
	env := setupAPITestEnv(t)
	env.llm.On("Chat", mock.Anything, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, mock.Anything).
		Return(&llm.Response{Text: "Hello", DeltaCount: 2, ModelName: "qwen"}, nil).Once()

	w := env.do(jsonRequest(t, http.MethodPost, "/api/chat/complete", map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"model":    "qwen",
	}))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "Hello", gjson.Get(body, "data.content").String())
	assert.Equal(t, "qwen", gjson.Get(body, "data.model").String())
	assert.Equal(t, int64(2), gjson.Get(body, "data.delta_count").Int())
}

// TestMiddleware 测试追踪ID和跨域处理
func TestMiddleware(t *testing.T) {
	env := setupAPITestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
	req.Header.Set(middleware.TraceIDHeader, "trace-123")
	w := env.do(req)
	assert.Equal(t, "trace-123", w.Header().Get(middleware.TraceIDHeader))
	assert.Equal(t, "trace-123", gjson.Get(w.Body.String(), "trace_id").String())

	w = env.do(httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
