// Package gateway assembles the provider registry, proxy forwarder and HTTP
// server into a single long-running process, keeping provider health and
// capability caches warm in the background.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/relaygrid/mcpgate/internal/contracts"
	"github.com/relaygrid/mcpgate/internal/registry"
	"github.com/relaygrid/mcpgate/internal/server"
)

// DefaultHealthInterval is how often provider health and capabilities are
// re-polled when no interval is configured.
const DefaultHealthInterval = 30 * time.Second

// Gateway owns the background polling loop and the HTTP server lifecycle.
// New should be used to create instances of Gateway.
type Gateway struct {
	logger         hclog.Logger
	store          contracts.ProviderStore
	srv            *server.Server
	healthInterval time.Duration
}

// New creates a gateway from its assembled dependencies.
func New(logger hclog.Logger, store contracts.ProviderStore, srv *server.Server, healthInterval time.Duration) (*Gateway, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if store == nil {
		return nil, fmt.Errorf("provider store is required")
	}
	if srv == nil {
		return nil, fmt.Errorf("server is required")
	}
	if healthInterval <= 0 {
		healthInterval = DefaultHealthInterval
	}

	return &Gateway{
		logger:         logger.Named("gateway"),
		store:          store,
		srv:            srv,
		healthInterval: healthInterval,
	}, nil
}

// StartAndManage warms the provider caches, starts the periodic polling
// loop, then serves HTTP until the context is canceled.
func (g *Gateway) StartAndManage(ctx context.Context) error {
	g.warm(ctx)

	go g.pollLoop(ctx)

	return g.srv.Start(ctx)
}

// warm populates health and capability caches before the first request so
// clients never observe an empty registry view on startup.
func (g *Gateway) warm(ctx context.Context) {
	g.logger.Info("Warming provider caches")

	var wg errgroup.Group
	wg.Go(func() error {
		health := g.store.CollectHealth(ctx)
		g.logger.Info("Initial health collected", "status", health.Status, "providers", len(health.Services))
		return nil
	})
	wg.Go(func() error {
		g.store.RefreshCapabilities(ctx)
		return nil
	})
	_ = wg.Wait()
}

func (g *Gateway) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(g.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := g.store.CollectHealth(ctx)
			if health.Status != registry.StatusOK {
				g.logger.Warn("Provider health degraded", "status", health.Status)
			}
			g.store.RefreshCapabilities(ctx)
		}
	}
}
