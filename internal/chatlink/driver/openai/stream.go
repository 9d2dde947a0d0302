package openai

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/sse"
)

// streamChunkPayload is the wire shape of one streamed delta chunk.
type streamChunkPayload struct {
	Choices []streamChoice  `json:"choices"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

type streamChoice struct {
	Delta streamDelta `json:"delta"`
}

type streamDelta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

// chunkStream adapts a provider SSE body into a chunk sequence. It is
// single-pass and non-restartable.
type chunkStream struct {
	body    io.ReadCloser
	scanner *sse.Scanner
}

func newChunkStream(body io.ReadCloser) *chunkStream {
	return &chunkStream{body: body, scanner: sse.NewScanner(body)}
}

// Recv returns the next chunk, or io.EOF at the provider's [DONE]
// sentinel or end of body.
func (s *chunkStream) Recv() (*driver.StreamChunk, error) {
	for s.scanner.Scan() {
		var payload streamChunkPayload
		if err := json.Unmarshal(s.scanner.Bytes(), &payload); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}

		chunk := &driver.StreamChunk{Usage: payload.Usage}
		if len(payload.Choices) > 0 {
			chunk.Content = payload.Choices[0].Delta.Content
			chunk.ReasoningContent = payload.Choices[0].Delta.ReasoningContent
		}
		return chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *chunkStream) Close() error {
	return s.body.Close()
}
