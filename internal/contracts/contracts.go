// Package contracts defines the consumer-side interfaces the API layer depends
// on, keeping handlers decoupled from the concrete registry, proxy, and bridge
// implementations.
package contracts

import (
	"context"

	"github.com/relaygrid/mcpgate/internal/bridge"
	"github.com/relaygrid/mcpgate/internal/proxy"
	"github.com/relaygrid/mcpgate/internal/registry"
)

// ProviderStore is the registry surface the gateway API consumes.
type ProviderStore interface {
	Descriptor(name string) (registry.Descriptor, bool)
	Info(name string) (registry.ProviderInfo, bool)
	List() []registry.ProviderInfo
	Upsert(d registry.Descriptor, headers map[string]string) (registry.ProviderInfo, error)
	Remove(name string) bool
	CollectHealth(ctx context.Context) registry.AggregatedHealth
	RefreshCapabilities(ctx context.Context)
}

// ProxyForwarder forwards JSON payloads to a named provider.
type ProxyForwarder interface {
	Forward(ctx context.Context, provider, relativePath string, payload map[string]any) (*proxy.Result, error)
}

// BridgeService is the invocation surface a bridge HTTP facade consumes.
// bridge.Bridge implements it for a live child process; bridge.Unconfigured
// implements it for a facade missing its required configuration.
type BridgeService interface {
	Ready() error
	IsRunning() bool
	InvokeTool(ctx context.Context, tool string, arguments map[string]any) (any, error)
	Manifest() bridge.Manifest
}
