package chatlink

import (
	"fmt"
	"strings"
	"time"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver/openai"
)

// Default endpoints and models for the two provider roles.
const (
	defaultMultimodalBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultMultimodalModel   = "qwen-omni-turbo"
	defaultReasoningBaseURL  = "https://api.deepseek.com"
	defaultReasoningModel    = "deepseek-reasoner"
	defaultTitleModel        = "deepseek-chat"

	defaultMultimodalTimeout = 30 * time.Second
	defaultReasoningTimeout  = 60 * time.Second
)

// Registry constructs and hands out upstream clients per role. Missing
// credentials fail at construction, not on first request, so a
// misconfigured deployment dies immediately.
type Registry struct {
	cfg     Config
	clients map[string]*openai.Client
}

// NewRegistry validates provider configuration and builds the per-role
// clients. Both roles must be enabled with a non-empty API key.
func NewRegistry(cfg Config) (*Registry, error) {
	reg := &Registry{cfg: cfg, clients: make(map[string]*openai.Client)}

	for _, role := range []string{RoleMultimodal, RoleReasoning} {
		pc, ok := cfg.Providers[role]
		if !ok || !pc.Enabled {
			return nil, fmt.Errorf("provider %q is not configured", role)
		}
		if strings.TrimSpace(pc.APIKey) == "" {
			return nil, fmt.Errorf("provider %q is missing an api key", role)
		}

		client := openai.NewClient(role, withDefault(pc.BaseURL, defaultBaseURL(role)), pc.APIKey, driver.Capabilities{
			Streaming: pc.Capabilities.Streaming,
			Images:    pc.Capabilities.Images,
			Audio:     pc.Capabilities.Audio,
			Video:     pc.Capabilities.Video,
		})
		// Per-provider timeout wins, then the relay-wide default, then
		// the role default.
		client.Timeout = pc.Timeout
		if client.Timeout <= 0 {
			client.Timeout = cfg.DefaultTimeout
		}
		if client.Timeout <= 0 {
			client.Timeout = defaultTimeout(role)
		}
		reg.clients[role] = client
	}

	return reg, nil
}

// Client returns the driver for a role.
func (r *Registry) Client(role string) (driver.Driver, error) {
	if r == nil {
		return nil, fmt.Errorf("provider registry not configured")
	}
	client, ok := r.clients[role]
	if !ok {
		return nil, fmt.Errorf("unknown provider role %q", role)
	}
	return client, nil
}

// Model returns the chat model configured for a role.
func (r *Registry) Model(role string) string {
	pc := r.cfg.Providers[role]
	switch role {
	case RoleMultimodal:
		return withDefault(pc.Model, defaultMultimodalModel)
	case RoleReasoning:
		return withDefault(pc.Model, defaultReasoningModel)
	}
	return pc.Model
}

// TitleModel returns the model used for conversation titles.
func (r *Registry) TitleModel() string {
	return withDefault(r.cfg.Providers[RoleReasoning].TitleModel, defaultTitleModel)
}

// ProviderInfo is the effective provider setup for one role, with
// defaults applied. Used for CLI display and diagnostics; no credential
// material beyond presence is exposed.
type ProviderInfo struct {
	Role       string
	Enabled    bool
	BaseURL    string
	Model      string
	TitleModel string
	Timeout    time.Duration
	HasAPIKey  bool
	Caps       CapabilitiesConfig
}

// Describe reports the effective provider configuration without
// requiring valid credentials.
func Describe(cfg Config) []ProviderInfo {
	infos := make([]ProviderInfo, 0, 2)
	for _, role := range []string{RoleMultimodal, RoleReasoning} {
		pc := cfg.Providers[role]
		info := ProviderInfo{
			Role:      role,
			Enabled:   pc.Enabled,
			BaseURL:   withDefault(pc.BaseURL, defaultBaseURL(role)),
			Timeout:   pc.Timeout,
			HasAPIKey: strings.TrimSpace(pc.APIKey) != "",
			Caps:      pc.Capabilities,
		}
		if info.Timeout <= 0 {
			info.Timeout = cfg.DefaultTimeout
		}
		if info.Timeout <= 0 {
			info.Timeout = defaultTimeout(role)
		}
		switch role {
		case RoleMultimodal:
			info.Model = withDefault(pc.Model, defaultMultimodalModel)
		case RoleReasoning:
			info.Model = withDefault(pc.Model, defaultReasoningModel)
			info.TitleModel = withDefault(pc.TitleModel, defaultTitleModel)
		}
		infos = append(infos, info)
	}
	return infos
}

func defaultBaseURL(role string) string {
	if role == RoleMultimodal {
		return defaultMultimodalBaseURL
	}
	return defaultReasoningBaseURL
}

func defaultTimeout(role string) time.Duration {
	if role == RoleMultimodal {
		return defaultMultimodalTimeout
	}
	return defaultReasoningTimeout
}

func withDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
