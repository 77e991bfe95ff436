package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/contracts"
	internalerrors "github.com/relaygrid/mcpgate/internal/errors"
	"github.com/relaygrid/mcpgate/internal/webhook"
)

// WebhookRequest is the request for POST /webhook. The raw body is needed
// verbatim for signature verification before any JSON decoding happens.
type WebhookRequest struct {
	Signature string `header:"X-Hub-Signature-256" doc:"HMAC-SHA256 signature of the body" required:"false"`
	Event     string `header:"X-GitHub-Event" doc:"Event type" required:"false"`
	Delivery  string `header:"X-GitHub-Delivery" doc:"Unique delivery identifier" required:"false"`
	RawBody   []byte
}

// WebhookResponse is the response for POST /webhook.
type WebhookResponse struct {
	Body struct {
		Status   string `json:"status" doc:"'accepted' or 'ignored'"`
		Detail   string `json:"detail,omitempty" doc:"Reason an event was ignored"`
		Delivery string `json:"delivery,omitempty" doc:"Echoed delivery identifier"`
	}
}

// RegisterWebhookRoutes sets up the signed webhook ingestion endpoint.
// Dispatch to the bridged tool happens in the background; the endpoint
// acknowledges receipt as soon as the event is validated.
func RegisterWebhookRoutes(routerAPI huma.API, dispatcher *webhook.Dispatcher, svc contracts.BridgeService, logger hclog.Logger) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID:   "receiveWebhook",
			Method:        http.MethodPost,
			Path:          "/webhook",
			Summary:       "Receive a signed webhook event and dispatch it to a tool",
			Tags:          []string{"Webhooks"},
			DefaultStatus: http.StatusAccepted,
		},
		func(_ context.Context, input *WebhookRequest) (*WebhookResponse, error) {
			if err := svc.Ready(); err != nil && stderrors.Is(err, internalerrors.ErrNotConfigured) {
				return nil, err
			}

			if !dispatcher.Configured() {
				return nil, fmt.Errorf("%w: no webhook secret configured", internalerrors.ErrNotConfigured)
			}

			if err := dispatcher.VerifySignature(input.RawBody, input.Signature); err != nil {
				return nil, err
			}

			payload := map[string]any{}
			if len(bytes.TrimSpace(input.RawBody)) > 0 {
				if err := json.Unmarshal(input.RawBody, &payload); err != nil {
					return nil, fmt.Errorf("%w: body must be a JSON object", internalerrors.ErrBadRequest)
				}
			}

			if input.Event == "" || input.Delivery == "" {
				return nil, fmt.Errorf("%w: missing event or delivery headers", internalerrors.ErrBadRequest)
			}

			resp := &WebhookResponse{}

			if !dispatcher.Allowed(input.Event) {
				logger.Debug("Ignoring webhook event outside the allow-list", "event", input.Event)
				resp.Body.Status = "ignored"
				resp.Body.Detail = "event not allowed"
				return resp, nil
			}

			dispatcher.Dispatch(input.Event, input.Delivery, payload)

			resp.Body.Status = "accepted"
			resp.Body.Delivery = input.Delivery
			return resp, nil
		},
	)
}
