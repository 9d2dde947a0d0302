package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink"
)

// withChatService swaps in a pipeline for the duration of one test.
func withChatService(t *testing.T, svc *chatlink.Service) {
	t.Helper()
	prev := chatService
	SetChatService(svc)
	t.Cleanup(func() { SetChatService(prev) })
}

func newChatService(t *testing.T, upstreamURL string) *chatlink.Service {
	t.Helper()
	svc, err := chatlink.NewService(chatlink.Config{
		Providers: map[string]chatlink.ProviderConfig{
			chatlink.RoleMultimodal: {Enabled: true, BaseURL: upstreamURL, APIKey: "test-key"},
			chatlink.RoleReasoning:  {Enabled: true, BaseURL: upstreamURL, APIKey: "test-key"},
		},
	}, nil)
	require.NoError(t, err)
	return svc
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestChatHandlerStreams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"你好\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()
	withChatService(t, newChatService(t, upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"你好"}]}`))
	rec := httptest.NewRecorder()

	ChatHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `"content":"你好"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestChatHandlerInvalidJSON(t *testing.T) {
	withChatService(t, newChatService(t, "http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	ChatHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "无效的消息格式", decodeError(t, rec))
}

func TestChatHandlerEmptyMessages(t *testing.T) {
	withChatService(t, newChatService(t, "http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()

	ChatHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "无效的消息格式", decodeError(t, rec))
}

func TestChatHandlerUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()
	withChatService(t, newChatService(t, upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"你好"}]}`))
	rec := httptest.NewRecorder()

	ChatHandler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decodeError(t, rec), "身份验证失败")
}

func TestChatHandlerServiceUnavailable(t *testing.T) {
	withChatService(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"你好"}]}`))
	rec := httptest.NewRecorder()

	ChatHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatTitleHandler(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"天气闲聊"},"finish_reason":"stop"}]}`)
	}))
	defer upstream.Close()
	withChatService(t, newChatService(t, upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/chat/title",
		strings.NewReader(`{"messages":[{"role":"user","content":"今天天气怎么样"}]}`))
	rec := httptest.NewRecorder()

	ChatTitleHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp chatlink.TitleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "天气闲聊", resp.Title)
}

func TestChatTitleHandlerDegrades(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()
	withChatService(t, newChatService(t, upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/chat/title",
		strings.NewReader(`{"messages":[{"role":"user","content":"你好"}]}`))
	rec := httptest.NewRecorder()

	ChatTitleHandler(rec, req)

	// Title generation is non-critical: failures still return 200 with
	// the default title.
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp chatlink.TitleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chatlink.DefaultTitle, resp.Title)
	assert.NotEmpty(t, resp.Error)
}

func TestChatTitleHandlerEmptyMessages(t *testing.T) {
	withChatService(t, newChatService(t, "http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/chat/title", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()

	ChatTitleHandler(rec, req)

	// Empty conversations still get a title, never an error status.
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp chatlink.TitleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chatlink.DefaultTitle, resp.Title)
	assert.Empty(t, resp.Error)
}

func TestChatTitleHandlerInvalidJSON(t *testing.T) {
	withChatService(t, newChatService(t, "http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/chat/title", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	ChatTitleHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp chatlink.TitleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chatlink.DefaultTitle, resp.Title)
}
