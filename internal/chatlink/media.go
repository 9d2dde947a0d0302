package chatlink

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/content"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/encode"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/prompt"
)

// defaultAudioWarnBytes is the soft base64-length ceiling before a size
// warning is logged. The upstream API's own limit is authoritative.
const defaultAudioWarnBytes = 100000

// Failure texts substituted when a media block cannot be constructed.
// The conversation still reaches the model with an explanation the
// assistant can relay.
var mediaFailureTexts = map[string]string{
	MediaTypeImage: "由于图片处理失败，请尝试使用其他图片格式或更小的文件。",
	MediaTypeAudio: "由于音频处理失败，请尝试使用其他音频格式或更小的文件。",
	MediaTypeVideo: "由于视频处理失败，请尝试使用其他视频格式或更小的文件。",
}

// AttachMedia augments the final user message with the media payload: the
// media block goes to the front of the content array so the model sees the
// reference before any instructional text, followed by the user's own text
// and a per-media-kind instruction. When the last message is not
// user-authored a fresh user message is appended first.
//
// A single call is not idempotent; callers attach each payload once.
func (s *Service) AttachMedia(msgs []content.Message, media *MediaPayload) []content.Message {
	if media == nil {
		return msgs
	}

	out := make([]content.Message, len(msgs))
	copy(out, msgs)

	last := len(out) - 1
	if last < 0 || out[last].Role != content.RoleUser {
		out = append(out, content.BlockMessage(content.RoleUser))
		last = len(out) - 1
	}

	userBlocks := out[last].Blocks
	if !out[last].IsBlockForm() && strings.TrimSpace(out[last].Text) != "" {
		userBlocks = []content.Block{content.TextBlock(out[last].Text)}
	}

	blocks := make([]content.Block, 0, len(userBlocks)+2)

	mediaBlock, err := s.buildMediaBlock(media)
	if err != nil {
		s.logWarn("media block construction failed, degrading to text",
			zap.String("media_type", media.Type), zap.Error(err))
		blocks = append(blocks, content.TextBlock(failureText(media.Type)))
	} else {
		blocks = append(blocks, mediaBlock)
	}

	blocks = append(blocks, userBlocks...)

	if instruction := s.instructionFor(media.Type); instruction != "" {
		blocks = append(blocks, content.TextBlock(instruction))
	}

	out[last] = content.BlockMessage(content.RoleUser, blocks...)
	return out
}

func (s *Service) buildMediaBlock(media *MediaPayload) (content.Block, error) {
	if strings.TrimSpace(media.Data) == "" {
		return content.Block{}, fmt.Errorf("media payload has no data")
	}

	format := strings.ToLower(strings.TrimSpace(media.Format))

	switch media.Type {
	case MediaTypeImage:
		if format == "" {
			format = "png"
		}
		if info, err := encode.ProbeImage(media.Data); err != nil {
			s.logWarn("image probe failed", zap.Error(err))
		} else {
			s.logDebug("attaching image",
				zap.String("format", info.Format),
				zap.Int("width", info.Width),
				zap.Int("height", info.Height))
		}
		return content.ImageBlock(encode.ImageDataURL(format, media.Data)), nil

	case MediaTypeAudio:
		if format == "" {
			format = "mp3"
		}
		warnBytes := s.Config.AudioWarnBytes
		if warnBytes <= 0 {
			warnBytes = defaultAudioWarnBytes
		}
		if len(media.Data) > warnBytes {
			s.logWarn("audio payload exceeds soft size limit",
				zap.Int("size", len(media.Data)), zap.Int("limit", warnBytes))
		}
		return content.AudioBlock(encode.AudioDataURL(media.Data), format), nil

	case MediaTypeVideo:
		if format == "" {
			format = "mp4"
		}
		// The video data: URI is untyped; the declared format is advisory.
		s.logDebug("attaching video", zap.String("format", format), zap.Int("size", len(media.Data)))
		return content.VideoBlock(encode.VideoDataURL(media.Data)), nil

	default:
		return content.Block{}, fmt.Errorf("unsupported media type %q", media.Type)
	}
}

// instructionFor resolves the per-media instruction prompt.
func (s *Service) instructionFor(mediaType string) string {
	slug := ""
	switch mediaType {
	case MediaTypeImage:
		slug = prompt.SlugImageMedia
	case MediaTypeAudio:
		slug = prompt.SlugAudioMedia
	case MediaTypeVideo:
		slug = prompt.SlugVideoMedia
	default:
		return ""
	}
	def, err := s.Prompts.Get(slug)
	if err != nil {
		s.logWarn("media instruction prompt missing", zap.String("slug", slug), zap.Error(err))
		return ""
	}
	system, _ := def.Render(nil)
	return system
}

func failureText(mediaType string) string {
	if text, ok := mediaFailureTexts[mediaType]; ok {
		return text
	}
	return "媒体处理失败，请检查文件格式后重试。"
}
