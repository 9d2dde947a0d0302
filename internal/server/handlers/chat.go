package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
	"github.com/Xiaobuyudesu/assistor/internal/metrics"
	"github.com/Xiaobuyudesu/assistor/internal/observability"
)

var chatService *chatlink.Service

// SetChatService injects the chat pipeline used by the chat handlers.
func SetChatService(service *chatlink.Service) {
	chatService = service
}

const invalidMessagesText = "无效的消息格式"

// chatErrorResponse is the non-streaming error body for the chat
// endpoints. Chat clients consume this shape directly, so it stays flat
// rather than using the envelope the other endpoints share.
type chatErrorResponse struct {
	Error string `json:"error"`
}

// ChatHandler streams a model response for the posted conversation.
//
// Errors before the first byte of the stream are returned as classified
// JSON; once streaming starts, failures travel in-band and the response
// status stays 200.
func ChatHandler(w http.ResponseWriter, r *http.Request) {
	if chatService == nil {
		writeChatError(w, http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	var req chatlink.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, http.StatusBadRequest, invalidMessagesText)
		return
	}

	mode := requestMode(&req)
	start := time.Now()

	err := chatService.Chat(r.Context(), &req, w)
	metrics.RecordChatRequest(mode, err == nil)
	metrics.RecordStreamDuration(mode, time.Since(start))

	if err == nil {
		return
	}

	if errors.Is(err, chatlink.ErrInvalidMessages) {
		writeChatError(w, http.StatusBadRequest, invalidMessagesText)
		return
	}

	status, message := chatlink.Classify(err)
	recordUpstreamFailure(mode, err, status)
	if observability.ServerLogger != nil {
		observability.ServerLogger.Error("Chat request failed",
			zap.String("mode", mode),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeChatError(w, status, message)
}

// ChatTitleHandler generates a short conversation title. Failures are
// non-critical and degrade to the default title with a 200 response.
func ChatTitleHandler(w http.ResponseWriter, r *http.Request) {
	if chatService == nil {
		writeChatError(w, http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	resp := chatlink.TitleResponse{Title: chatlink.DefaultTitle}

	var req chatlink.TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Unparseable or empty bodies get the default title, not an error.
		metrics.RecordTitleRequest(false)
	} else if title, err := chatService.Title(r.Context(), &req); err == nil {
		metrics.RecordTitleRequest(true)
		resp.Title = title
	} else if errors.Is(err, chatlink.ErrInvalidMessages) {
		metrics.RecordTitleRequest(false)
	} else {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Title generation degraded",
				zap.Error(err))
		}
		metrics.RecordTitleRequest(false)
		_, resp.Error = chatlink.Classify(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func requestMode(req *chatlink.ChatRequest) string {
	if req.Media == nil {
		return metrics.ModeText
	}
	if chatService != nil && chatService.Config.DeepAnalysis {
		return metrics.ModeDeepAnalysis
	}
	return metrics.ModeMedia
}

func recordUpstreamFailure(mode string, err error, status int) {
	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		metrics.RecordUpstreamError(perr.Provider, perr.StatusCode)
		return
	}
	metrics.RecordUpstreamError(mode, status)
}

func writeChatError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(chatErrorResponse{Error: message})
}
