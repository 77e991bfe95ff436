package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/bridge"
	"github.com/relaygrid/mcpgate/internal/contracts"
	internalerrors "github.com/relaygrid/mcpgate/internal/errors"
)

// BridgeStatus reports whether the bridged MCP server is ready for calls.
type BridgeStatus struct {
	Status string `json:"status" doc:"'ok' when the bridged server is running"`
	Detail string `json:"detail,omitempty" doc:"Reason the bridge is unavailable"`
}

// BridgeHealthResponse is the response for GET /health in bridge mode.
type BridgeHealthResponse struct {
	Body BridgeStatus
}

// ManifestResponse is the response for GET /.well-known/mcp.json.
type ManifestResponse struct {
	Body bridge.Manifest
}

// InvokeRequest is the request for POST /invoke.
type InvokeRequest struct {
	Body struct {
		Tool      string         `json:"tool" doc:"Name of the tool to invoke"`
		Arguments map[string]any `json:"arguments,omitempty" doc:"Tool arguments"`
	}
}

// InvokeResponse is the response for POST /invoke, carrying the tool result
// exactly as the bridged server returned it.
type InvokeResponse struct {
	Body any
}

// RegisterBridgeRoutes sets up the health, discovery and invocation
// endpoints for a single bridged MCP server.
func RegisterBridgeRoutes(routerAPI huma.API, svc contracts.BridgeService, logger hclog.Logger) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "bridgeHealth",
			Method:      http.MethodGet,
			Path:        "/health",
			Summary:     "Readiness of the bridged MCP server",
			Tags:        []string{"Health"},
		},
		func(_ context.Context, _ *struct{}) (*BridgeHealthResponse, error) {
			resp := &BridgeHealthResponse{}
			if err := svc.Ready(); err != nil {
				resp.Body.Status = "error"
				resp.Body.Detail = err.Error()
			} else {
				resp.Body.Status = "ok"
			}
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "bridgeManifest",
			Method:      http.MethodGet,
			Path:        "/.well-known/mcp.json",
			Summary:     "Discovery manifest with the bridged server's capabilities",
			Tags:        []string{"Discovery"},
		},
		func(_ context.Context, _ *struct{}) (*ManifestResponse, error) {
			resp := &ManifestResponse{}
			resp.Body = svc.Manifest()
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "invokeTool",
			Method:      http.MethodPost,
			Path:        "/invoke",
			Summary:     "Invoke a tool on the bridged MCP server",
			Tags:        []string{"Tools"},
		},
		func(ctx context.Context, input *InvokeRequest) (*InvokeResponse, error) {
			tool := strings.TrimSpace(input.Body.Tool)
			if tool == "" {
				return nil, fmt.Errorf("%w: 'tool' is required", internalerrors.ErrBadRequest)
			}

			logger.Info("Invoking tool", "tool", tool)

			result, err := svc.InvokeTool(ctx, tool, input.Body.Arguments)
			if err != nil {
				return nil, err
			}

			resp := &InvokeResponse{}
			resp.Body = result
			return resp, nil
		},
	)
}
