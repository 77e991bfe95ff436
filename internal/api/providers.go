package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/relaygrid/mcpgate/internal/contracts"
	"github.com/relaygrid/mcpgate/internal/registry"
)

// ListProvidersRequest is the request for GET /providers.
type ListProvidersRequest struct {
	Refresh bool `query:"refresh" doc:"Refresh capability caches before listing" required:"false"`
}

// ListProvidersResponse is the response for GET /providers.
type ListProvidersResponse struct {
	Body []registry.ProviderInfo
}

// RegisterProviderRoutes sets up the provider listing endpoint.
func RegisterProviderRoutes(routerAPI huma.API, store contracts.ProviderStore) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "listProviders",
			Method:      http.MethodGet,
			Path:        "/providers",
			Summary:     "List registered providers with cached health and capabilities",
			Tags:        []string{"Providers"},
		},
		func(ctx context.Context, input *ListProvidersRequest) (*ListProvidersResponse, error) {
			if input.Refresh {
				store.RefreshCapabilities(ctx)
			}

			resp := &ListProvidersResponse{}
			resp.Body = store.List()
			return resp, nil
		},
	)
}
