package chatlink

import "encoding/json"

// Media payload kinds accepted at the request boundary.
const (
	MediaTypeImage = "image"
	MediaTypeAudio = "audio"
	MediaTypeVideo = "video"
)

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Messages []RawMessage  `json:"messages"`
	Media    *MediaPayload `json:"media,omitempty"`
}

// TitleRequest is the POST /chat/title request body.
type TitleRequest struct {
	Messages []RawMessage `json:"messages"`
}

// RawMessage is a client-supplied message before normalization. Content
// may be a plain string, an array of content blocks, absent, or any
// other shape a buggy caller produces; normalization fails closed.
type RawMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// MediaPayload carries one base64-encoded attachment. It is consumed
// exactly once, to build a content block on the final user message, and
// never persisted.
type MediaPayload struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	Format string `json:"format"`
}

// Frame is one relayed SSE event. Every emitted frame is valid JSON; the
// stream is terminated by the literal [DONE] sentinel instead.
type Frame struct {
	Content             string          `json:"content,omitempty"`
	ReasoningContent    string          `json:"reasoning_content,omitempty"`
	ReasoningExpandable bool            `json:"reasoning_expandable,omitempty"`
	HasReasoning        bool            `json:"has_reasoning,omitempty"`
	Usage               json.RawMessage `json:"usage,omitempty"`
	FinalReasoning      string          `json:"final_reasoning,omitempty"`
	Error               string          `json:"error,omitempty"`
}

// TitleResponse is the POST /chat/title response body. Error is set when
// generation degraded to the default title; the status is still 200.
type TitleResponse struct {
	Title string `json:"title"`
	Error string `json:"error,omitempty"`
}
