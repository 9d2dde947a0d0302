package content

// Role is a chat message author role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three enumerated values.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Block type tags, matching the OpenAI-compatible wire format.
const (
	BlockTypeText  = "text"
	BlockTypeImage = "image_url"
	BlockTypeAudio = "input_audio"
	BlockTypeVideo = "video_url"
)

// URLRef wraps a data: URI or remote URL.
type URLRef struct {
	URL string `json:"url"`
}

// AudioRef wraps inline base64 audio plus its declared format.
type AudioRef struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// Block is one element of a user message's content array. It is a tagged
// union: exactly one of the optional fields is populated, selected by Type.
// A block is owned by the message it belongs to and never shared.
type Block struct {
	Type       string    `json:"type"`
	Text       string    `json:"text,omitempty"`
	ImageURL   *URLRef   `json:"image_url,omitempty"`
	InputAudio *AudioRef `json:"input_audio,omitempty"`
	VideoURL   *URLRef   `json:"video_url,omitempty"`
}

// TextBlock returns a text block.
func TextBlock(text string) Block {
	return Block{Type: BlockTypeText, Text: text}
}

// ImageBlock returns an image_url block referencing a data: URI.
func ImageBlock(url string) Block {
	return Block{Type: BlockTypeImage, ImageURL: &URLRef{URL: url}}
}

// AudioBlock returns an input_audio block with inline base64 data.
func AudioBlock(data, format string) Block {
	return Block{Type: BlockTypeAudio, InputAudio: &AudioRef{Data: data, Format: format}}
}

// VideoBlock returns a video_url block referencing a data: URI.
func VideoBlock(url string) Block {
	return Block{Type: BlockTypeVideo, VideoURL: &URLRef{URL: url}}
}

// Message is a chat message in normalized form. Content is either plain
// string content (Text set, Blocks nil) or an ordered block sequence
// (Blocks set). Which form a provider receives is a fixed per-provider
// contract enforced during normalization, not a runtime heuristic.
type Message struct {
	Role   Role
	Text   string
	Blocks []Block
}

// TextMessage returns a message with flat string content.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// BlockMessage returns a message with array-form content.
func BlockMessage(role Role, blocks ...Block) Message {
	return Message{Role: role, Blocks: blocks}
}

// IsBlockForm reports whether the message carries array-form content.
func (m Message) IsBlockForm() bool {
	return m.Blocks != nil
}

// JoinedText concatenates the text of all text-typed blocks with a single
// space, or returns the flat text for string-form messages. Non-text
// blocks are dropped in this reduction.
func (m Message) JoinedText() string {
	if !m.IsBlockForm() {
		return m.Text
	}
	out := ""
	for _, b := range m.Blocks {
		if b.Type != BlockTypeText || b.Text == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += b.Text
	}
	return out
}
