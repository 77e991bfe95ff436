package registry

import (
	"strings"
	"time"
)

const (
	// StatusOK means the last health poll for a provider succeeded.
	StatusOK Status = "ok"

	// StatusError means the last health poll failed or returned an error status.
	StatusError Status = "error"

	// DefaultHealthPath is polled when a descriptor doesn't configure one.
	DefaultHealthPath = "/health"

	// DefaultHealthMethod is used when a descriptor doesn't configure one.
	DefaultHealthMethod = "GET"

	// DefaultCapabilitiesPath is the well-known MCP manifest location.
	DefaultCapabilitiesPath = "/.well-known/mcp.json"
)

// Status is a provider liveness classification.
type Status string

// Descriptor identifies and locates one downstream MCP-compatible HTTP service.
type Descriptor struct {
	Name             string   `json:"name"`
	BaseURL          string   `json:"base_url"`
	HealthPath       string   `json:"health_path,omitempty"`
	HealthMethod     string   `json:"health_method,omitempty"`
	CapabilitiesPath string   `json:"capabilities_path,omitempty"`
	DefaultTools     []string `json:"default_tools,omitempty"`

	// DisableCapabilities marks a descriptor whose manifest polling is switched off
	// (`capabilities=` with an empty value in the entry grammar).
	DisableCapabilities bool `json:"-"`
}

// Normalize trims identity fields and fills defaulted paths.
// It returns false when the descriptor is unusable (missing name or base URL).
func (d *Descriptor) Normalize() bool {
	d.Name = strings.TrimSpace(d.Name)
	d.BaseURL = strings.TrimSpace(d.BaseURL)
	if d.Name == "" || d.BaseURL == "" {
		return false
	}
	if d.HealthPath == "" {
		d.HealthPath = DefaultHealthPath
	}
	if d.HealthMethod == "" {
		d.HealthMethod = DefaultHealthMethod
	}
	d.HealthMethod = strings.ToUpper(d.HealthMethod)
	if d.CapabilitiesPath == "" && !d.DisableCapabilities {
		d.CapabilitiesPath = DefaultCapabilitiesPath
	}
	return true
}

// Health is the last known liveness snapshot for one provider.
// One record per provider, overwritten on every poll; no history is retained.
type Health struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Detail    any       `json:"detail,omitempty"`
	LatencyMS *int64    `json:"latency_ms,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AggregatedHealth is a point-in-time view over every tracked provider.
// Status is ok iff every provider reports ok.
type AggregatedHealth struct {
	Status    Status    `json:"status"`
	Services  []Health  `json:"services"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderInfo merges a descriptor with its last known health and capabilities
// into a read view for listing APIs.
type ProviderInfo struct {
	Name                  string         `json:"name"`
	BaseURL               string         `json:"base_url"`
	HealthPath            string         `json:"health_path"`
	CapabilitiesPath      string         `json:"capabilities_path,omitempty"`
	DefaultTools          []string       `json:"default_tools"`
	Health                *Health        `json:"health,omitempty"`
	Capabilities          map[string]any `json:"capabilities,omitempty"`
	CapabilitiesUpdatedAt *time.Time     `json:"capabilities_updated_at,omitempty"`
}
