package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/errgroup"

	"github.com/relaygrid/mcpgate/internal/contracts"
	internalerrors "github.com/relaygrid/mcpgate/internal/errors"
	"github.com/relaygrid/mcpgate/internal/registry"
)

const bearerPrefix = "Bearer "

// RegisterProviderRequest is the request for POST /admin/providers.
type RegisterProviderRequest struct {
	Authorization string `header:"Authorization" doc:"Bearer token for admin access" required:"false"`
	Body          struct {
		Descriptor registry.Descriptor `json:"descriptor" doc:"Provider registration details"`
		Headers    map[string]string   `json:"headers,omitempty" doc:"Extra headers to attach to proxied calls"`
	}
}

// RegisterProviderResponse is the response for POST /admin/providers.
type RegisterProviderResponse struct {
	Body registry.ProviderInfo
}

// RemoveProviderRequest is the request for DELETE /admin/providers/{name}.
type RemoveProviderRequest struct {
	Authorization string `header:"Authorization" doc:"Bearer token for admin access" required:"false"`
	Name          string `path:"name" doc:"Name of the provider to remove"`
}

// RemoveProviderResponse is the response for DELETE /admin/providers/{name}.
type RemoveProviderResponse struct {
	Body struct {
		Status   string `json:"status" doc:"Outcome of the removal"`
		Provider string `json:"provider" doc:"Name of the removed provider"`
	}
}

// RegisterAdminRoutes sets up the runtime provider administration endpoints.
// When adminToken is empty, every admin request is rejected as unavailable
// rather than unauthorized, so callers can tell the surface is disabled.
func RegisterAdminRoutes(routerAPI huma.API, store contracts.ProviderStore, adminToken string) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "registerProvider",
			Method:      http.MethodPost,
			Path:        "/admin/providers",
			Summary:     "Register or replace a provider at runtime",
			Tags:        []string{"Admin"},
		},
		func(ctx context.Context, input *RegisterProviderRequest) (*RegisterProviderResponse, error) {
			if err := authorizeAdmin(adminToken, input.Authorization); err != nil {
				return nil, err
			}

			if _, err := store.Upsert(input.Body.Descriptor, input.Body.Headers); err != nil {
				return nil, err
			}

			// Poll the new provider before responding so the returned
			// view reflects live state rather than empty caches.
			var wg errgroup.Group
			wg.Go(func() error {
				store.CollectHealth(ctx)
				return nil
			})
			wg.Go(func() error {
				store.RefreshCapabilities(ctx)
				return nil
			})
			_ = wg.Wait()

			info, ok := store.Info(input.Body.Descriptor.Name)
			if !ok {
				return nil, fmt.Errorf("%w: '%s'", internalerrors.ErrProviderNotFound, input.Body.Descriptor.Name)
			}

			resp := &RegisterProviderResponse{}
			resp.Body = info
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "removeProvider",
			Method:      http.MethodDelete,
			Path:        "/admin/providers/{name}",
			Summary:     "Remove a provider and purge its cached state",
			Tags:        []string{"Admin"},
		},
		func(_ context.Context, input *RemoveProviderRequest) (*RemoveProviderResponse, error) {
			if err := authorizeAdmin(adminToken, input.Authorization); err != nil {
				return nil, err
			}

			if !store.Remove(input.Name) {
				return nil, fmt.Errorf("%w: '%s'", internalerrors.ErrProviderNotFound, input.Name)
			}

			resp := &RemoveProviderResponse{}
			resp.Body.Status = "removed"
			resp.Body.Provider = input.Name
			return resp, nil
		},
	)
}

// authorizeAdmin validates the presented Authorization header against the
// configured admin token using a constant-time comparison.
func authorizeAdmin(adminToken string, header string) error {
	if adminToken == "" {
		return fmt.Errorf("%w: no admin token configured", internalerrors.ErrAdminDisabled)
	}

	if !strings.HasPrefix(header, bearerPrefix) {
		return fmt.Errorf("%w: missing bearer token", internalerrors.ErrUnauthorized)
	}

	presented := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
		return fmt.Errorf("%w: invalid admin token", internalerrors.ErrUnauthorized)
	}

	return nil
}
