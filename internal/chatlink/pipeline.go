// Package chatlink coordinates prompt loading, provider routing, and the
// streaming relay between the chat client and the upstream model APIs.
package chatlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/content"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/prompt"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/sse"
	"github.com/Xiaobuyudesu/assistor/internal/metrics"
)

// ErrInvalidMessages rejects requests whose messages field is missing or
// empty. It surfaces as a 400 JSON error, never as a stream.
var ErrInvalidMessages = errors.New("invalid message format")

// DefaultTitle is returned whenever title generation degrades.
const DefaultTitle = "新对话"

const (
	chatTemperature  = 0.7
	titleTemperature = 0.5
	titleMaxTokens   = 50
	stage2MaxTokens  = 1500
)

// Service is the request pipeline: normalization, media attachment,
// provider calls, and the SSE relay. All per-request state (reasoning
// buffer, drained analysis) is local to a call; a Service is safe for
// concurrent use.
type Service struct {
	Registry *Registry
	Prompts  prompt.Registry
	Config   Config
	Logger   *logging.Logger
}

// NewService builds the pipeline from configuration. Provider validation
// happens here, so a missing credential is fatal before the first request.
func NewService(cfg Config, logger *logging.Logger) (*Service, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}

	var prompts prompt.Registry
	if dir := strings.TrimSpace(cfg.PromptsDir); dir != "" {
		loaded, err := prompt.LoadFromDir(dir)
		if err != nil {
			return nil, err
		}
		prompts, err = prompt.NewRegistry(loaded)
		if err != nil {
			return nil, err
		}
	} else {
		prompts, err = prompt.DefaultRegistry()
		if err != nil {
			return nil, err
		}
	}

	return &Service{Registry: registry, Prompts: prompts, Config: cfg, Logger: logger}, nil
}

// Chat runs the full pipeline for one request and streams the response
// to w. An error return means nothing has been written yet and the
// caller should respond with a classified JSON error; once streaming has
// begun all failures are degraded to in-band error frames and Chat
// returns nil.
func (s *Service) Chat(ctx context.Context, req *ChatRequest, w http.ResponseWriter) error {
	if req == nil || len(req.Messages) == 0 {
		return ErrInvalidMessages
	}
	if req.Media == nil {
		return s.chatTextOnly(ctx, req, w)
	}
	return s.chatMedia(ctx, req, w)
}

func (s *Service) chatTextOnly(ctx context.Context, req *ChatRequest, w http.ResponseWriter) error {
	msgs := Normalize(req.Messages, RoleReasoning)
	msgs = EnsureSystemPrompt(msgs, s.systemPromptText())

	drv, err := s.Registry.Client(RoleReasoning)
	if err != nil {
		return err
	}

	temp := chatTemperature
	stream, err := drv.Stream(ctx, &driver.Request{
		Model:       s.Registry.Model(RoleReasoning),
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return err
	}
	defer stream.Close() // nolint:errcheck // best-effort cleanup

	writer, err := sse.Prepare(w)
	if err != nil {
		return err
	}

	s.logDebug("relaying text conversation", zap.Int("messages", len(msgs)))
	metrics.RecordStreamFrames(metrics.ModeText, int64(s.relay(stream, writer)))
	return nil
}

func (s *Service) chatMedia(ctx context.Context, req *ChatRequest, w http.ResponseWriter) error {
	msgs := Normalize(req.Messages, RoleMultimodal)
	msgs = EnsureSystemPrompt(msgs, s.systemPromptText())
	msgs = s.AttachMedia(msgs, req.Media)

	drv, err := s.Registry.Client(RoleMultimodal)
	if err != nil {
		return err
	}

	stage1, err := drv.Stream(ctx, &driver.Request{
		Model:        s.Registry.Model(RoleMultimodal),
		Messages:     msgs,
		IncludeUsage: true,
	})
	if err != nil {
		return err
	}

	if !s.Config.DeepAnalysis {
		defer stage1.Close() // nolint:errcheck // best-effort cleanup
		writer, err := sse.Prepare(w)
		if err != nil {
			return err
		}
		s.logDebug("relaying multimodal stream", zap.String("media_type", req.Media.Type))
		metrics.RecordStreamFrames(metrics.ModeMedia, int64(s.relay(stage1, writer)))
		return nil
	}

	// Stage two depends on the complete stage-one output, so the stream
	// is fully drained before the reasoning call starts.
	analysis, err := s.drainAnalysis(stage1)
	_ = stage1.Close()
	if err != nil {
		// The client expects a stream once media processing starts, so
		// the drain failure travels in-band rather than as bare JSON.
		writer, perr := sse.Prepare(w)
		if perr != nil {
			return perr
		}
		s.logWarn("stage-one drain failed", zap.Error(err))
		_ = writer.WriteJSON(Frame{Error: "媒体处理失败: " + err.Error()})
		_ = writer.WriteDone()
		return nil
	}
	s.logDebug("stage-one analysis drained", zap.Int("length", len(analysis)))

	stage2Msgs := s.buildDeepAnalysisMessages(req, analysis)

	reasoner, err := s.Registry.Client(RoleReasoning)
	if err != nil {
		return err
	}

	temp := chatTemperature
	maxTokens := stage2MaxTokens
	stage2, err := reasoner.Stream(ctx, &driver.Request{
		Model:       s.Registry.Model(RoleReasoning),
		Messages:    stage2Msgs,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return err
	}
	defer stage2.Close() // nolint:errcheck // best-effort cleanup

	writer, err := sse.Prepare(w)
	if err != nil {
		return err
	}
	metrics.RecordStreamFrames(metrics.ModeDeepAnalysis, int64(s.relay(stage2, writer)))
	return nil
}

// relay converts upstream chunks into SSE frames in strict arrival
// order, returning the number of frames written. Reasoning deltas
// accumulate in a per-call buffer so the usage frame can carry the
// complete thinking text. The stream always ends with the [DONE]
// sentinel, including on upstream failure.
func (s *Service) relay(stream driver.Stream, w *sse.Writer) int {
	var reasoning strings.Builder
	frames := 0

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logWarn("upstream stream failed", zap.Error(err))
			_ = w.WriteJSON(Frame{Error: err.Error()})
			_ = w.WriteDone()
			return frames + 1
		}

		var frame *Frame
		switch {
		case chunk.ReasoningContent != "":
			reasoning.WriteString(chunk.ReasoningContent)
			frame = &Frame{ReasoningContent: chunk.ReasoningContent, ReasoningExpandable: true}
		case chunk.Content != "":
			frame = &Frame{Content: chunk.Content, HasReasoning: reasoning.Len() > 0}
		case len(chunk.Usage) > 0:
			frame = &Frame{Usage: chunk.Usage}
			if reasoning.Len() > 0 {
				frame.FinalReasoning = reasoning.String()
			}
		default:
			// Framing noise; no frame emitted.
		}

		if frame != nil {
			if err := w.WriteJSON(*frame); err != nil {
				// Downstream is gone; stop consuming upstream.
				s.logDebug("client disconnected mid-stream", zap.Error(err))
				return frames
			}
			frames++
		}
	}

	_ = w.WriteDone()
	return frames
}

// drainAnalysis relays the stream into a buffer and re-parses it with
// the shared SSE decoder, concatenating content frames into the complete
// analysis text. An in-band error frame fails the drain.
func (s *Service) drainAnalysis(stream driver.Stream) (string, error) {
	var buf bytes.Buffer
	s.relay(stream, sse.NewWriter(&buf, nil))

	var analysis strings.Builder
	scanner := sse.NewScanner(&buf)
	for scanner.Scan() {
		var frame Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			// Unparseable frames are skipped, matching the relay's
			// tolerance for framing noise.
			continue
		}
		if frame.Error != "" {
			return "", errors.New(frame.Error)
		}
		analysis.WriteString(frame.Content)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return analysis.String(), nil
}

// buildDeepAnalysisMessages assembles the stage-two conversation: the
// original system messages (or the deep-analysis persona when absent),
// the prior history, and a final user turn embedding the original
// question and the stage-one analysis.
func (s *Service) buildDeepAnalysisMessages(req *ChatRequest, analysis string) []content.Message {
	msgs := Normalize(req.Messages, RoleReasoning)

	var systems, history []content.Message
	for _, m := range msgs {
		if m.Role == content.RoleSystem {
			systems = append(systems, m)
		} else {
			history = append(history, m)
		}
	}

	question := invalidRolePlaceholder
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == content.RoleUser {
			if text := strings.TrimSpace(history[i].JoinedText()); text != "" {
				question = text
			}
			break
		}
	}

	mediaType := "unknown"
	if req.Media != nil && req.Media.Type != "" {
		mediaType = req.Media.Type
	}

	systemText, userText := s.renderDeepAnalysis(mediaType, question, analysis)

	out := make([]content.Message, 0, len(msgs)+2)
	if len(systems) > 0 {
		out = append(out, systems...)
	} else {
		out = append(out, content.BlockMessage(content.RoleSystem, content.TextBlock(systemText)))
	}
	if len(history) > 0 {
		out = append(out, history[:len(history)-1]...)
	}
	return append(out, content.BlockMessage(content.RoleUser, content.TextBlock(userText)))
}

func (s *Service) renderDeepAnalysis(mediaType, question, analysis string) (system, user string) {
	def, err := s.Prompts.Get(prompt.SlugDeepAnalysis)
	if err != nil {
		s.logWarn("deep-analysis prompt missing", zap.Error(err))
		return "", fmt.Sprintf("用户原始问题：%s\n\n初步媒体分析结果：\n%s", question, analysis)
	}
	return def.Render(map[string]string{
		"media_type": mediaType,
		"question":   question,
		"analysis":   analysis,
	})
}

// Title generates a short conversation title via a non-streaming
// completion. Failures degrade to DefaultTitle at the handler; this is a
// non-critical enhancement and must never hard-fail a request.
func (s *Service) Title(ctx context.Context, req *TitleRequest) (string, error) {
	if req == nil || len(req.Messages) == 0 {
		return "", ErrInvalidMessages
	}

	var conversation strings.Builder
	for _, m := range Normalize(req.Messages, RoleReasoning) {
		conversation.WriteString(string(m.Role))
		conversation.WriteString(": ")
		conversation.WriteString(m.JoinedText())
		conversation.WriteString("\n")
	}

	def, err := s.Prompts.Get(prompt.SlugTitle)
	if err != nil {
		return "", err
	}
	systemText, userText := def.Render(map[string]string{
		"conversation": strings.TrimSpace(conversation.String()),
	})

	drv, err := s.Registry.Client(RoleReasoning)
	if err != nil {
		return "", err
	}

	temp := titleTemperature
	maxTokens := titleMaxTokens
	resp, err := drv.Complete(ctx, &driver.Request{
		Model: s.Registry.TitleModel(),
		Messages: []content.Message{
			content.BlockMessage(content.RoleSystem, content.TextBlock(systemText)),
			content.BlockMessage(content.RoleUser, content.TextBlock(userText)),
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(resp.Text)
	if title == "" {
		return "", errors.New("empty title completion")
	}
	return title, nil
}

func (s *Service) systemPromptText() string {
	def, err := s.Prompts.Get(prompt.SlugChatSystem)
	if err != nil {
		return "你是一个多模态AI助手，擅长分析媒体内容。"
	}
	system, _ := def.Render(nil)
	return system
}

func (s *Service) logDebug(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Debug(msg, fields...)
	}
}

func (s *Service) logWarn(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}
