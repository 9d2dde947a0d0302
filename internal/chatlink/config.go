package chatlink

import "time"

// Provider roles. The relay always routes through one or both of these;
// they are fixed contracts, not runtime heuristics.
const (
	RoleMultimodal = "multimodal"
	RoleReasoning  = "reasoning"
)

// Config defines provider configuration for the chat relay.
//
// This is intentionally self-contained so it can later be extracted as a
// standalone library configuration subtree.
type Config struct {
	// DeepAnalysis routes media conversations through a second,
	// reasoning-provider pass over the multimodal analysis.
	DeepAnalysis bool `mapstructure:"deep_analysis"`

	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// PromptsDir allows deployments to override the embedded prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`

	// AudioWarnBytes is the soft ceiling on base64 audio payload length
	// before a size warning is logged. The upstream API's own limit stays
	// authoritative.
	AudioWarnBytes int `mapstructure:"audio_warn_bytes"`

	// Providers is keyed by role (multimodal, reasoning).
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig defines one configured upstream provider.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	// Model is the chat completion model for this role.
	Model string `mapstructure:"model"`

	// TitleModel, when set, is used for conversation title generation
	// instead of Model (reasoning role only).
	TitleModel string `mapstructure:"title_model"`

	Timeout time.Duration `mapstructure:"timeout"`

	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
}

// CapabilitiesConfig mirrors driver capabilities at config time.
type CapabilitiesConfig struct {
	Streaming bool `mapstructure:"streaming"`
	Images    bool `mapstructure:"images"`
	Audio     bool `mapstructure:"audio"`
	Video     bool `mapstructure:"video"`
}
