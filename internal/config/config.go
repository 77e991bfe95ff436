// Package config loads the mcpgate TOML configuration file and layers
// environment variable overrides on top of it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-hclog"
)

const (
	// Env vars layered over the config file.
	EnvVarProviders      = "MCPGATE_PROVIDERS"
	EnvVarAdminToken     = "MCPGATE_ADMIN_TOKEN"
	EnvVarAllowOrigins   = "MCPGATE_ALLOW_ORIGINS"
	EnvVarGitHubToken    = "GITHUB_MCP_TOKEN"
	EnvVarGitHubPersonal = "GITHUB_PERSONAL_TOKEN"
	EnvVarBridgeCommand  = "MCPGATE_BRIDGE_COMMAND"
	EnvVarWebhookSecret  = "MCPGATE_WEBHOOK_SECRET"
	EnvVarWebhookTool    = "MCPGATE_WEBHOOK_TOOL"
	EnvVarWebhookEvents  = "MCPGATE_WEBHOOK_EVENTS"
	EnvVarWebhookToolMap = "MCPGATE_WEBHOOK_TOOL_MAP"

	DefaultGatewayAddr = "0.0.0.0:8010"
	DefaultBridgeAddr  = "0.0.0.0:8005"
)

// Load reads the TOML file at path. A missing file at the default location is
// not an error: the zero config plus environment variables is a valid setup.
// An explicitly requested file that does not exist is an error.
func Load(path string, explicit bool) (*Config, error) {
	path = strings.TrimSpace(path)
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) && !explicit {
				return cfg, nil
			}
			return nil, fmt.Errorf("config file (%s): %w", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config from file (%s): %w", path, err)
		}
	}

	return cfg, nil
}

// ProviderList returns the delimited provider string from the environment,
// falling back to the config file entries joined back into the same grammar.
func (c *Config) ProviderList() string {
	if env := strings.TrimSpace(os.Getenv(EnvVarProviders)); env != "" {
		return env
	}
	return strings.Join(c.Gateway.Providers, ",")
}

// AdminToken returns the shared admin bearer token, empty when admin is disabled.
func AdminToken() string {
	return strings.TrimSpace(os.Getenv(EnvVarAdminToken))
}

// GitHubToken returns the bearer injected for the github provider.
func GitHubToken() string {
	if t := strings.TrimSpace(os.Getenv(EnvVarGitHubToken)); t != "" {
		return t
	}
	return strings.TrimSpace(os.Getenv(EnvVarGitHubPersonal))
}

// AllowOrigins returns CORS origins from env or config, defaulting to all.
func (c *Config) AllowOrigins() []string {
	raw := strings.TrimSpace(os.Getenv(EnvVarAllowOrigins))
	if raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return origins
	}
	if len(c.Gateway.AllowOrigins) > 0 {
		return c.Gateway.AllowOrigins
	}
	return []string{"*"}
}

// WebhookSecret resolves the webhook shared secret: the configured env var
// name wins, then the conventional MCPGATE_WEBHOOK_SECRET.
func (c *Config) WebhookSecret() string {
	if name := strings.TrimSpace(c.Bridge.Webhook.SecretEnv); name != "" {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return os.Getenv(EnvVarWebhookSecret)
}

// WebhookDefaultTool resolves the fallback tool for unmapped events.
func (c *Config) WebhookDefaultTool() string {
	if env := strings.TrimSpace(os.Getenv(EnvVarWebhookTool)); env != "" {
		return env
	}
	return c.Bridge.Webhook.DefaultTool
}

// WebhookAllowedEvents resolves the event allow-list (empty admits everything).
func (c *Config) WebhookAllowedEvents() []string {
	if raw := strings.TrimSpace(os.Getenv(EnvVarWebhookEvents)); raw != "" {
		var events []string
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				events = append(events, e)
			}
		}
		return events
	}
	return c.Bridge.Webhook.AllowedEvents
}

// WebhookToolMap resolves the event-to-tool map. An invalid JSON map in the
// environment is tolerated with a warning rather than failing startup.
func (c *Config) WebhookToolMap(logger hclog.Logger) map[string]string {
	raw := strings.TrimSpace(os.Getenv(EnvVarWebhookToolMap))
	if raw == "" {
		return c.Bridge.Webhook.ToolMap
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logger.Warn("Invalid webhook tool map, ignoring", "env", EnvVarWebhookToolMap, "error", err)
		return c.Bridge.Webhook.ToolMap
	}
	return m
}

// MissingRequiredEnv returns the first required-but-unset env var name for the
// bridge, or empty when everything is present.
func (c *Config) MissingRequiredEnv() string {
	for _, name := range c.Bridge.RequireEnv {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			return name
		}
	}
	return ""
}
