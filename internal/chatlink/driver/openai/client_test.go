package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/content"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
)

func testRequest() *driver.Request {
	return &driver.Request{
		Model: "test-model",
		Messages: []content.Message{
			content.BlockMessage(content.RoleUser, content.TextBlock("你好")),
		},
	}
}

func TestComplete(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"我在"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer srv.Close()

	client := NewClient("reasoning", srv.URL+"/v1/", "secret", driver.Capabilities{Streaming: true})
	resp, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "我在", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.TotalTokens)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "test-model", payload["model"])
	_, hasStream := payload["stream"]
	assert.False(t, hasStream, "non-streaming requests omit the stream flag")
}

func TestCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("reasoning", srv.URL, "secret", driver.Capabilities{})
	_, err := client.Complete(context.Background(), testRequest())
	require.Error(t, err)

	var perr *driver.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "reasoning", perr.Provider)
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
	assert.Contains(t, perr.Message, "model not found")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	client := NewClient("reasoning", srv.URL, "secret", driver.Capabilities{})
	_, err := client.Complete(context.Background(), testRequest())
	require.Error(t, err)
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var payload map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, true, payload["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"思考中\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"答案\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"total_tokens\":9}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient("multimodal", srv.URL, "secret", driver.Capabilities{Streaming: true})
	stream, err := client.Stream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "思考中", chunk.ReasoningContent)

	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "答案", chunk.Content)

	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.NotEmpty(t, chunk.Usage)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamMalformedChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\n\n")
	}))
	defer srv.Close()

	client := NewClient("multimodal", srv.URL, "secret", driver.Capabilities{})
	stream, err := client.Stream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stream chunk")
}

func TestStreamIncludeUsageOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		opts, ok := payload["stream_options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, opts["include_usage"])
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient("multimodal", srv.URL, "secret", driver.Capabilities{})
	req := testRequest()
	req.IncludeUsage = true
	stream, err := client.Stream(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestRequestValidation(t *testing.T) {
	client := NewClient("reasoning", "http://unused.invalid", "secret", driver.Capabilities{})

	t.Run("nil request", func(t *testing.T) {
		_, err := client.Complete(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("missing model", func(t *testing.T) {
		req := testRequest()
		req.Model = " "
		_, err := client.Complete(context.Background(), req)
		require.Error(t, err)
	})

	t.Run("no messages", func(t *testing.T) {
		req := testRequest()
		req.Messages = nil
		_, err := client.Complete(context.Background(), req)
		require.Error(t, err)
	})

	t.Run("missing api key", func(t *testing.T) {
		bare := NewClient("reasoning", "http://unused.invalid", "", driver.Capabilities{})
		_, err := bare.Complete(context.Background(), testRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api key")
	})
}

func TestConvertContent(t *testing.T) {
	// Block-form messages serialize as arrays, flat messages as strings.
	blockMsg := content.BlockMessage(content.RoleUser, content.TextBlock("你好"))
	flatMsg := content.TextMessage(content.RoleAssistant, "好的")

	payload, err := buildChatRequest(&driver.Request{Model: "m", Messages: []content.Message{blockMsg, flatMsg}}, false)
	require.NoError(t, err)

	encoded, err := json.Marshal(payload.Messages)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"role":"user","content":[{"type":"text","text":"你好"}]},
		{"role":"assistant","content":"好的"}
	]`, string(encoded))
}

func TestCapabilities(t *testing.T) {
	caps := driver.Capabilities{Streaming: true, Images: true, Audio: true}
	client := NewClient("multimodal", "http://unused.invalid", "k", caps)
	assert.Equal(t, caps, client.Capabilities())
	assert.Equal(t, "multimodal", client.Name())
}
