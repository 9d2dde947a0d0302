package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink"
)

func TestFormatProviders(t *testing.T) {
	out := FormatProviders([]chatlink.ProviderInfo{
		{
			Role:      "multimodal",
			Enabled:   true,
			BaseURL:   "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:     "qwen-omni-turbo",
			Timeout:   30 * time.Second,
			HasAPIKey: true,
			Caps:      chatlink.CapabilitiesConfig{Streaming: true, Images: true},
		},
		{
			Role:       "reasoning",
			BaseURL:    "https://api.deepseek.com",
			Model:      "deepseek-reasoner",
			TitleModel: "deepseek-chat",
			Timeout:    60 * time.Second,
		},
	})

	assert.Contains(t, out, "multimodal")
	assert.Contains(t, out, "qwen-omni-turbo")
	assert.Contains(t, out, "deepseek-reasoner (titles: deepseek-chat)")
	assert.Contains(t, out, "streaming, images")
	assert.Contains(t, out, "set")
	assert.Contains(t, out, "missing")
	// API key values never appear in any form.
	assert.NotContains(t, out, "sk-")
}
