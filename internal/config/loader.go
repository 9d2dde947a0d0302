// Package config provides centralized configuration management.
// It implements a three-layer pattern:
// Layer 1: built-in defaults
// Layer 2: user config file (discovered via app identity)
// Layer 3: environment variables and runtime overrides
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Xiaobuyudesu/assistor/internal/appid"
	"github.com/Xiaobuyudesu/assistor/internal/chatlink"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// Load loads configuration using the three-layer pattern. The optional
// runtime overrides are applied last and win over file and environment
// values.
//
// This function is safe to call multiple times (e.g., for config reload).
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	v := viper.New()
	setDefaults(v)

	// Layer 2: user config file via XDG discovery. A missing file is fine;
	// defaults and environment cover it.
	if path := strings.TrimSpace(os.Getenv(envPrefix() + "CONFIG")); path != "" {
		v.SetConfigFile(path)
	} else {
		if configDir := gfconfig.GetAppConfigDir(configName()); configDir != "" {
			v.AddConfigPath(configDir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Layer 3: environment variables.
	applyEnvOverrides(v)

	for _, overrides := range runtimeOverrides {
		applyOverrides(v, "", overrides)
	}

	cfg := &Config{}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// applyOverrides flattens nested override maps into dotted keys so a
// partial subtree override does not clobber sibling defaults.
func applyOverrides(v *viper.Viper, prefix string, overrides map[string]any) {
	for key, value := range overrides {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			applyOverrides(v, path, nested)
			continue
		}
		v.Set(path, value)
	}
}

// setDefaults establishes Layer 1. Provider base URLs and model names
// default inside chatlink; only role wiring lives here.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Chat relay defaults
	v.SetDefault("chat.deep_analysis", false)
	v.SetDefault("chat.default_timeout", "60s")
	v.SetDefault("chat.providers."+chatlink.RoleMultimodal+".enabled", true)
	v.SetDefault("chat.providers."+chatlink.RoleMultimodal+".capabilities.streaming", true)
	v.SetDefault("chat.providers."+chatlink.RoleMultimodal+".capabilities.images", true)
	v.SetDefault("chat.providers."+chatlink.RoleMultimodal+".capabilities.audio", true)
	v.SetDefault("chat.providers."+chatlink.RoleMultimodal+".capabilities.video", true)
	v.SetDefault("chat.providers."+chatlink.RoleReasoning+".enabled", true)
	v.SetDefault("chat.providers."+chatlink.RoleReasoning+".capabilities.streaming", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

type envBinding struct {
	name string
	path string
}

// envBindings maps {PREFIX}{NAME} environment variables to config paths.
func envBindings() []envBinding {
	prefix := envPrefix()
	return []envBinding{
		// Server config
		{prefix + "HOST", "server.host"},
		{prefix + "PORT", "server.port"},
		{prefix + "READ_TIMEOUT", "server.read_timeout"},
		{prefix + "WRITE_TIMEOUT", "server.write_timeout"},
		{prefix + "IDLE_TIMEOUT", "server.idle_timeout"},
		{prefix + "SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},

		// Logging config
		{prefix + "LOG_LEVEL", "logging.level"},
		{prefix + "LOG_PROFILE", "logging.profile"},

		// Chat relay config
		{prefix + "CHAT_DEEP_ANALYSIS", "chat.deep_analysis"},
		{prefix + "CHAT_DEFAULT_TIMEOUT", "chat.default_timeout"},
		{prefix + "CHAT_PROMPTS_DIR", "chat.prompts_dir"},
		{prefix + "CHAT_AUDIO_WARN_BYTES", "chat.audio_warn_bytes"},

		// Metrics config
		{prefix + "METRICS_ENABLED", "metrics.enabled"},
		{prefix + "METRICS_PORT", "metrics.port"},

		// Health config
		{prefix + "HEALTH_ENABLED", "health.enabled"},

		// Debug config
		{prefix + "DEBUG_ENABLED", "debug.enabled"},
		{prefix + "DEBUG_PPROF_ENABLED", "debug.pprof_enabled"},
	}
}

func applyEnvOverrides(v *viper.Viper) {
	for _, binding := range envBindings() {
		if value := strings.TrimSpace(os.Getenv(binding.name)); value != "" {
			v.Set(binding.path, value)
		}
	}
	applyProviderEnvOverrides(v)
	applyLegacyEnvOverrides(v)
}

// applyProviderEnvOverrides handles the dynamic per-role provider keys:
// {PREFIX}CHAT_PROVIDERS_{ROLE}_{FIELD}, e.g.
// ASSISTOR_CHAT_PROVIDERS_REASONING_API_KEY.
func applyProviderEnvOverrides(v *viper.Viper) {
	providerPrefix := envPrefix() + "CHAT_PROVIDERS_"

	for _, item := range os.Environ() {
		key, value, ok := strings.Cut(item, "=")
		if !ok || !strings.HasPrefix(key, providerPrefix) {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}

		role, field, ok := strings.Cut(key[len(providerPrefix):], "_")
		if !ok {
			continue
		}
		role = strings.ToLower(role)
		if role != chatlink.RoleMultimodal && role != chatlink.RoleReasoning {
			continue
		}

		path := "chat.providers." + role + "."
		switch field {
		case "ENABLED":
			v.Set(path+"enabled", strings.EqualFold(strings.TrimSpace(value), "true"))
		case "BASE_URL":
			v.Set(path+"base_url", strings.TrimSpace(value))
		case "API_KEY":
			v.Set(path+"api_key", strings.TrimSpace(value))
		case "MODEL":
			v.Set(path+"model", strings.TrimSpace(value))
		case "TITLE_MODEL":
			v.Set(path+"title_model", strings.TrimSpace(value))
		case "TIMEOUT":
			v.Set(path+"timeout", strings.TrimSpace(value))
		}
	}
}

// applyLegacyEnvOverrides keeps the unprefixed variables from earlier
// deployments working. Prefixed variables win when both are set.
func applyLegacyEnvOverrides(v *viper.Viper) {
	prefix := envPrefix()

	if key := strings.TrimSpace(os.Getenv("DASHSCOPE_API_KEY")); key != "" {
		if os.Getenv(prefix+"CHAT_PROVIDERS_MULTIMODAL_API_KEY") == "" {
			v.Set("chat.providers."+chatlink.RoleMultimodal+".api_key", key)
		}
	}
	if key := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")); key != "" {
		if os.Getenv(prefix+"CHAT_PROVIDERS_REASONING_API_KEY") == "" {
			v.Set("chat.providers."+chatlink.RoleReasoning+".api_key", key)
		}
	}
	if value := strings.TrimSpace(os.Getenv("USE_DEEPSEEK_FOR_ANALYSIS")); value != "" {
		if os.Getenv(prefix+"CHAT_DEEP_ANALYSIS") == "" {
			v.Set("chat.deep_analysis", strings.EqualFold(value, "true"))
		}
	}
}

func envPrefix() string {
	prefix := "ASSISTOR_"
	if appIdentity != nil && strings.TrimSpace(appIdentity.EnvPrefix) != "" {
		prefix = appIdentity.EnvPrefix
		if !strings.HasSuffix(prefix, "_") {
			prefix += "_"
		}
	}
	return prefix
}

func configName() string {
	if appIdentity != nil {
		if name := strings.TrimSpace(appIdentity.ConfigName); name != "" {
			return name
		}
		if name := strings.TrimSpace(appIdentity.BinaryName); name != "" {
			return name
		}
	}
	return "assistor"
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(configName())
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return configDir + "/config.yaml"
}
