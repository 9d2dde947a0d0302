// Package output renders CLI-facing views of the service configuration.
package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink"
)

// FormatProviders renders the effective provider configuration as an
// ASCII table. API keys are reduced to presence; values never appear.
func FormatProviders(infos []chatlink.ProviderInfo) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Role", "Enabled", "Model", "Base URL", "Timeout", "API Key", "Capabilities"})

	for _, info := range infos {
		model := info.Model
		if info.TitleModel != "" {
			model += " (titles: " + info.TitleModel + ")"
		}
		t.AppendRow(table.Row{
			info.Role,
			yesNo(info.Enabled),
			model,
			info.BaseURL,
			info.Timeout.String(),
			keyLabel(info.HasAPIKey),
			capsLabel(info.Caps),
		})
	}

	return t.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func keyLabel(present bool) string {
	if present {
		return "set"
	}
	return "missing"
}

func capsLabel(caps chatlink.CapabilitiesConfig) string {
	var parts []string
	if caps.Streaming {
		parts = append(parts, "streaming")
	}
	if caps.Images {
		parts = append(parts, "images")
	}
	if caps.Audio {
		parts = append(parts, "audio")
	}
	if caps.Video {
		parts = append(parts, "video")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
