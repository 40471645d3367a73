package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/goal-map/internal/stream"
)

// newStreamServer 创建按行输出记录的推理服务
func newStreamServer(t *testing.T, records []string, check func(r *http.Request, req ChatRequest)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &req))
		if check != nil {
			check(r, req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, rec := range records {
			_, _ = io.WriteString(w, rec+"\n")
			flusher.Flush()
		}
	}))
}

// TestHTTPClientChatStream 测试流式对话
func TestHTTPClientChatStream(t *testing.T) {
	records := []string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: not-json`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	}
	server := newStreamServer(t, records, func(r *http.Request, req ChatRequest) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.True(t, req.Stream)
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "researcher", req.Agent)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleUser, req.Messages[1].Role)
	})
	defer server.Close()

	client, err := NewHTTPClient(
		WithEndpoint(server.URL),
		WithAPIKey("secret"),
		WithModel("test-model"),
		WithAgent("researcher"),
	)
	require.NoError(t, err)

	messages := []Message{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Hi"},
	}
	seq, err := client.ChatStream(context.Background(), messages)
	require.NoError(t, err)

	var deltas []string
	for delta, err := range seq {
		require.NoError(t, err)
		deltas = append(deltas, delta)
	}
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

// TestHTTPClientChat 测试拼接完整回复和单次请求选项
func TestHTTPClientChat(t *testing.T) {
	records := []string{
		`{"choices":[{"text":"Hello, "}]}`,
		`{"choices":[{"delta":{"text":"world"}}]}`,
	}
	server := newStreamServer(t, records, func(r *http.Request, req ChatRequest) {
		assert.Equal(t, "override", req.Model)
		assert.Equal(t, "planner", req.Agent)
		assert.Empty(t, r.Header.Get("Authorization"))
	})
	defer server.Close()

	client, err := NewHTTPClient(WithEndpoint(server.URL))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Name())

	resp, err := client.Chat(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}},
		WithChatModel("override"), WithChatAgent("planner"))
	require.NoError(t, err)

	assert.Equal(t, "Hello, world", resp.Text)
	assert.Equal(t, 2, resp.DeltaCount)
	assert.Equal(t, "override", resp.ModelName)
}

// TestHTTPClientErrors 测试错误映射
func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode int
	}{
		{"unauthorized", http.StatusUnauthorized, ErrCodeInvalidAPIKey},
		{"rate limited", http.StatusTooManyRequests, ErrCodeRateLimited},
		{"bad request", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"server error", http.StatusInternalServerError, ErrCodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client, err := NewHTTPClient(WithEndpoint(server.URL))
			require.NoError(t, err)

			seq, err := client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
			assert.Nil(t, seq)

			var llmErr LLMError
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantCode, llmErr.Code)

			var transportErr *stream.TransportError
			require.ErrorAs(t, err, &transportErr)
			assert.Equal(t, tt.status, transportErr.StatusCode)
			assert.True(t, IsTransportError(err))
		})
	}

	t.Run("empty messages", func(t *testing.T) {
		client, err := NewHTTPClient()
		require.NoError(t, err)

		_, err = client.ChatStream(context.Background(), nil)
		var llmErr LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeEmptyMessages, llmErr.Code)
		assert.False(t, IsTransportError(err))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client, err := NewHTTPClient(WithEndpoint(url))
		require.NoError(t, err)

		_, err = client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
		var llmErr LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeNetworkError, llmErr.Code)
	})

	t.Run("header timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client, err := NewHTTPClient(WithEndpoint(server.URL), WithTimeout(20*time.Millisecond))
		require.NoError(t, err)

		_, err = client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
		assert.Error(t, err)
		assert.True(t, IsTransportError(err))
	})

	t.Run("empty endpoint", func(t *testing.T) {
		_, err := NewHTTPClient(WithEndpoint(" "))
		assert.Error(t, err)
	})
}

// TestConfigAndOptions 测试配置选项
func TestConfigAndOptions(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "http://localhost:3001/api/chat", cfg.Endpoint)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.Timeout)

	cfg = NewConfig(
		WithEndpoint("http://example.com/chat"),
		WithAPIKey("key"),
		WithModel("m"),
		WithAgent("a"),
		WithTimeout(5*time.Second),
	)
	assert.Equal(t, "http://example.com/chat", cfg.Endpoint)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, "a", cfg.Agent)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

// TestClientFactory 测试客户端注册表
func TestClientFactory(t *testing.T) {
	client, err := NewClient(ProviderHTTP, WithModel("m"))
	require.NoError(t, err)
	assert.Equal(t, "m", client.Name())

	_, err = NewClient("unknown")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
}

// TestMockClient 测试mock客户端
func TestMockClient(t *testing.T) {
	mockClient := NewMockClient(t)
	mockClient.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).
		Return(SliceSeq([]string{"a", "b"}, errors.New("cut")), nil)

	seq, err := mockClient.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.NoError(t, err)

	resp, err := Collect(seq, "mock")
	assert.Nil(t, resp)
	assert.EqualError(t, err, "cut")
}
