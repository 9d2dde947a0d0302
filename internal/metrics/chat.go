package metrics

import (
	"time"

	"github.com/Xiaobuyudesu/assistor/internal/observability"
)

// Chat relay metrics following Prometheus conventions
var (
	ChatRequestsTotal      = "chat_requests_total"
	ChatStreamFramesTotal  = "chat_stream_frames_total"
	ChatStreamDuration     = "chat_stream_duration_ms"
	ChatUpstreamErrors     = "chat_upstream_errors_total"
	ChatTitleRequestsTotal = "chat_title_requests_total"
)

// Chat request modes as recorded in metrics labels.
const (
	ModeText         = "text"
	ModeMedia        = "media"
	ModeDeepAnalysis = "deep_analysis"
)

// RecordChatRequest records one chat request by processing mode.
func RecordChatRequest(mode string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ChatRequestsTotal,
			1,
			map[string]string{
				"mode":   mode,
				"status": status,
			},
		)
	}
}

// RecordStreamFrames records the number of frames relayed for one stream.
func RecordStreamFrames(mode string, frames int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ChatStreamFramesTotal,
			float64(frames),
			map[string]string{"mode": mode},
		)
	}
}

// RecordStreamDuration records end-to-end stream duration.
func RecordStreamDuration(mode string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			ChatStreamDuration,
			duration,
			map[string]string{"mode": mode},
		)
	}
}

// RecordUpstreamError records a provider-side failure by role.
func RecordUpstreamError(role string, statusCode int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ChatUpstreamErrors,
			1,
			map[string]string{
				"role":   role,
				"status": httpStatusClass(statusCode),
			},
		)
	}
}

// httpStatusClass buckets status codes to keep label cardinality low.
func httpStatusClass(statusCode int) string {
	switch {
	case statusCode >= 500:
		return "5xx"
	case statusCode >= 400:
		return "4xx"
	case statusCode > 0:
		return "other"
	default:
		return "unknown"
	}
}

// RecordTitleRequest records a title generation attempt.
func RecordTitleRequest(success bool) {
	status := "success"
	if !success {
		status = "degraded"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ChatTitleRequestsTotal,
			1,
			map[string]string{"status": status},
		)
	}
}
