package chatlink

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
)

// Classify maps an upstream failure to the HTTP status and user-facing
// message the client receives. The table is checked in order; the first
// matching row wins. No retries happen here — a single upstream failure
// surfaces immediately and retry policy belongs to the caller.
func Classify(err error) (status int, message string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var perr *driver.ProviderError
	upstreamStatus := 0
	if errors.As(err, &perr) && perr != nil {
		upstreamStatus = perr.StatusCode
	}
	msg := err.Error()

	for _, row := range classifyTable {
		if row.matches(upstreamStatus, msg) {
			status = row.status
			if status == 0 {
				status = passthroughStatus(upstreamStatus)
			}
			return status, row.message
		}
	}

	// Generic failure keeps the original status when there is one and
	// includes the raw message for diagnosis.
	return passthroughStatus(upstreamStatus), "处理请求失败: " + msg
}

type classifyRow struct {
	// matchStatus matches the upstream HTTP status when non-zero.
	matchStatus int
	// matchSubstr matches a fragment of the error message when non-empty.
	matchSubstr string
	// status is the emitted HTTP status; zero means pass the upstream
	// status through.
	status  int
	message string
}

func (r classifyRow) matches(status int, msg string) bool {
	if r.matchStatus != 0 && status == r.matchStatus {
		return true
	}
	return r.matchSubstr != "" && strings.Contains(msg, r.matchSubstr)
}

// Classification rows. The message-keyed media rows precede the bare 400
// row so a media-specific 400 keeps its specific message.
var classifyTable = []classifyRow{
	{matchStatus: http.StatusUnauthorized, status: http.StatusUnauthorized,
		message: "身份验证失败，请检查API密钥是否正确，或确认您的账户状态"},
	{matchStatus: http.StatusNotFound, status: http.StatusNotFound,
		message: "请求的资源不存在，可能是模型名称错误或API端点变更"},
	{matchStatus: http.StatusTooManyRequests, status: http.StatusTooManyRequests,
		message: "请求过于频繁，请稍后再试"},
	{matchStatus: http.StatusRequestEntityTooLarge, matchSubstr: "too large",
		message: "媒体文件太大，请使用更小的文件"},
	{matchStatus: http.StatusUnsupportedMediaType, matchSubstr: "format",
		message: "不支持的媒体格式，请尝试使用常见格式如MP3、MP4或PNG"},
	{matchSubstr: "does not appear to be valid",
		message: "媒体URL格式无效，请检查数据格式是否正确"},
	{matchSubstr: "content field is a required field",
		message: "消息格式错误，请确保正确提供了内容字段"},
	{matchStatus: http.StatusBadRequest, status: http.StatusBadRequest,
		message: "请求参数错误，可能是模型名称不正确或参数格式有误"},
}

func passthroughStatus(upstreamStatus int) int {
	if upstreamStatus > 0 {
		return upstreamStatus
	}
	return http.StatusInternalServerError
}
