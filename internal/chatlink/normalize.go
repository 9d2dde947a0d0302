package chatlink

import (
	"fmt"
	"strings"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/content"
)

// Placeholder texts substituted during normalization so that no turn is
// ever dropped and no empty turn is sent upstream.
const (
	invalidRolePlaceholder = "请分析这个内容"
	emptyUserPlaceholder   = "你好"
)

// Normalize converts client-supplied messages into the strict form the
// target provider expects. It never fails: invalid entries are replaced
// with placeholders rather than dropped, preserving index alignment with
// the caller's conversation.
//
// The content form is a fixed per-provider contract: system and user
// messages travel as block arrays, assistant messages as flat strings.
// The reasoning provider additionally cannot accept media blocks, so
// mixed user arrays are reduced to their text for that target.
func Normalize(raw []RawMessage, target string) []content.Message {
	out := make([]content.Message, 0, len(raw))
	for _, msg := range raw {
		out = append(out, normalizeOne(msg, target))
	}
	return out
}

func normalizeOne(msg RawMessage, target string) content.Message {
	role := content.Role(msg.Role)
	if !role.Valid() {
		return content.BlockMessage(content.RoleUser, content.TextBlock(invalidRolePlaceholder))
	}

	text, blocks := splitContent(msg.Content)

	switch role {
	case content.RoleAssistant:
		if blocks != nil {
			text = content.Message{Role: role, Blocks: blocks}.JoinedText()
		}
		return content.TextMessage(role, text)

	case content.RoleSystem:
		if blocks != nil {
			text = content.Message{Role: role, Blocks: blocks}.JoinedText()
		}
		return content.BlockMessage(role, content.TextBlock(text))

	default: // user
		if blocks == nil {
			trimmed := strings.TrimSpace(text)
			if trimmed == "" {
				trimmed = emptyUserPlaceholder
			}
			return content.BlockMessage(role, content.TextBlock(trimmed))
		}
		if len(blocks) == 0 {
			return content.BlockMessage(role, content.TextBlock(emptyUserPlaceholder))
		}
		if target == RoleReasoning && hasNonText(blocks) {
			joined := content.Message{Role: role, Blocks: blocks}.JoinedText()
			if strings.TrimSpace(joined) == "" {
				joined = emptyUserPlaceholder
			}
			return content.BlockMessage(role, content.TextBlock(joined))
		}
		// Already normalized by the caller; pass through unchanged.
		return content.Message{Role: role, Blocks: blocks}
	}
}

// splitContent decodes the untyped content field. It returns either flat
// text (blocks nil) or a block slice.
func splitContent(raw any) (string, []content.Block) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		return "", parseBlocks(v)
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func parseBlocks(items []any) []content.Block {
	blocks := make([]content.Block, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch entry["type"] {
		case content.BlockTypeText:
			if text, ok := entry["text"].(string); ok {
				blocks = append(blocks, content.TextBlock(text))
			}
		case content.BlockTypeImage:
			if url := nestedString(entry, "image_url", "url"); url != "" {
				blocks = append(blocks, content.ImageBlock(url))
			}
		case content.BlockTypeAudio:
			data := nestedString(entry, "input_audio", "data")
			format := nestedString(entry, "input_audio", "format")
			if data != "" {
				blocks = append(blocks, content.AudioBlock(data, format))
			}
		case content.BlockTypeVideo:
			if url := nestedString(entry, "video_url", "url"); url != "" {
				blocks = append(blocks, content.VideoBlock(url))
			}
		}
	}
	return blocks
}

func nestedString(entry map[string]any, outer, inner string) string {
	nested, ok := entry[outer].(map[string]any)
	if !ok {
		return ""
	}
	value, _ := nested[inner].(string)
	return value
}

func hasNonText(blocks []content.Block) bool {
	for _, b := range blocks {
		if b.Type != content.BlockTypeText {
			return true
		}
	}
	return false
}

// EnsureSystemPrompt injects a system message at index 0 when the
// conversation carries none.
func EnsureSystemPrompt(msgs []content.Message, text string) []content.Message {
	for _, m := range msgs {
		if m.Role == content.RoleSystem {
			return msgs
		}
	}
	out := make([]content.Message, 0, len(msgs)+1)
	out = append(out, content.BlockMessage(content.RoleSystem, content.TextBlock(text)))
	return append(out, msgs...)
}
