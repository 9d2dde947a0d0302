package openai

import (
	"fmt"
	"strings"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/content"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
)

type chatCompletionRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

func buildChatRequest(req *driver.Request, stream bool) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: convertContent(msg)})
	}

	payload := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream && req.IncludeUsage {
		payload.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	return payload, nil
}

// convertContent serializes a normalized message's content in the form it
// already carries. The string-vs-array decision belongs to normalization;
// the wire layer just honors it.
func convertContent(msg content.Message) interface{} {
	if msg.IsBlockForm() {
		return msg.Blocks
	}
	return msg.Text
}
