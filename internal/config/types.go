package config

import (
	"time"
)

// Duration wraps time.Duration for TOML decoding of values like "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration, or the fallback when unset.
func (d Duration) Std(fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return time.Duration(d)
}

// Config is the full TOML configuration file.
type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Bridge  BridgeConfig  `toml:"bridge"`
}

// GatewayConfig configures the provider registry + proxy gateway.
type GatewayConfig struct {
	Addr string `toml:"addr"`

	// Providers holds entries in the same grammar as MCPGATE_PROVIDERS:
	// "name:base_url|health=/ping|health_method=POST|capabilities=/m.json|tools=a+b".
	Providers []string `toml:"providers"`

	Timeout        Duration `toml:"timeout"`
	HealthInterval Duration `toml:"health_interval"`
	AllowOrigins   []string `toml:"allow_origins"`
}

// BridgeConfig configures a stdio bridge facade.
type BridgeConfig struct {
	Addr        string `toml:"addr"`
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`

	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`

	// RequireEnv names environment variables that must be non-empty for the
	// bridge to start; when one is missing the facade serves degraded health
	// and every /invoke fails with "not configured".
	RequireEnv []string `toml:"require_env"`

	// Framing is "ndjson" (default) or "content-length".
	Framing string `toml:"framing"`

	InvokeTimeout     Duration `toml:"invoke_timeout"`
	ValidateArguments bool     `toml:"validate_arguments"`

	Webhook WebhookConfig `toml:"webhook"`
}

// WebhookConfig configures the signed webhook endpoint of a bridge facade.
type WebhookConfig struct {
	// SecretEnv names the env var holding the shared HMAC secret.
	SecretEnv string `toml:"secret_env"`

	DefaultTool   string            `toml:"default_tool"`
	AllowedEvents []string          `toml:"allowed_events"`
	ToolMap       map[string]string `toml:"tool_map"`
}
