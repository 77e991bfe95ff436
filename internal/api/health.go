package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/relaygrid/mcpgate/internal/contracts"
	"github.com/relaygrid/mcpgate/internal/registry"
)

// GatewayHealthResponse is the response for GET /health on the gateway.
type GatewayHealthResponse struct {
	Body registry.AggregatedHealth
}

// RegisterGatewayHealthRoutes sets up the aggregated health endpoint.
// Each request triggers a fresh concurrent poll of every provider.
func RegisterGatewayHealthRoutes(routerAPI huma.API, store contracts.ProviderStore) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "gatewayHealth",
			Method:      http.MethodGet,
			Path:        "/health",
			Summary:     "Aggregated health across all registered providers",
			Tags:        []string{"Health"},
		},
		func(ctx context.Context, _ *struct{}) (*GatewayHealthResponse, error) {
			resp := &GatewayHealthResponse{}
			resp.Body = store.CollectHealth(ctx)
			return resp, nil
		},
	)
}
