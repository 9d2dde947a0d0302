package driver

import (
	"context"
	"encoding/json"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/content"
)

// Driver defines the interface for chat completion providers.
type Driver interface {
	// Complete sends a non-streaming completion request.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Stream opens a streaming completion. The returned stream must be
	// closed by the caller.
	Stream(ctx context.Context, req *Request) (Stream, error)
	// Name returns the driver identifier (e.g. "multimodal").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes which media kinds a provider accepts.
type Capabilities struct {
	Streaming bool
	Images    bool
	Audio     bool
	Video     bool
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []content.Message
	Temperature *float64
	MaxTokens   *int

	// IncludeUsage asks the provider to append a final usage chunk to the
	// stream (stream_options.include_usage).
	IncludeUsage bool
}

// Response is a non-streaming completion response.
type Response struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// StreamChunk is one incremental fragment of a streamed response. At most
// one of the fields is populated; chunks with none set carry framing
// noise and are skipped by the relay.
type StreamChunk struct {
	// Content is a delta of the answer channel.
	Content string
	// ReasoningContent is a delta of the model's thinking channel.
	ReasoningContent string
	// Usage is the provider's final usage object, passed through verbatim.
	Usage json.RawMessage
}

// Stream is a single-pass sequence of chunks. Recv returns io.EOF after
// the provider's terminal sentinel.
type Stream interface {
	Recv() (*StreamChunk, error)
	Close() error
}
