// Package webhook validates signed webhook deliveries and translates them into
// tool invocations on the underlying bridge, decoupled from the HTTP response.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/contracts"
	"github.com/relaygrid/mcpgate/internal/errors"
)

const signaturePrefix = "sha256="

// Config controls validation and event routing for one webhook endpoint.
type Config struct {
	// Secret is the shared HMAC secret. Empty disables the endpoint (503).
	Secret string

	// DefaultTool receives events with no explicit mapping.
	DefaultTool string

	// AllowedEvents, when non-empty, is the allow-list; events outside it are
	// acknowledged but not dispatched.
	AllowedEvents []string

	// ToolMap routes an event type to a specific tool name.
	ToolMap map[string]string
}

// Dispatcher verifies deliveries and fires tool invocations in the background.
type Dispatcher struct {
	logger  hclog.Logger
	cfg     Config
	invoker contracts.BridgeService
}

// NewDispatcher creates a Dispatcher bound to a bridge service.
func NewDispatcher(logger hclog.Logger, cfg Config, invoker contracts.BridgeService) *Dispatcher {
	return &Dispatcher{
		logger:  logger.Named("webhook"),
		cfg:     cfg,
		invoker: invoker,
	}
}

// Configured reports whether a shared secret is set.
func (d *Dispatcher) Configured() bool {
	return d.cfg.Secret != ""
}

// VerifySignature checks the HMAC-SHA256 signature header against the raw body
// using constant-time equality.
func (d *Dispatcher) VerifySignature(body []byte, signatureHeader string) error {
	if d.cfg.Secret == "" || signatureHeader == "" {
		return fmt.Errorf("%w: missing signature", errors.ErrUnauthorized)
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return fmt.Errorf("%w: malformed signature header", errors.ErrUnauthorized)
	}
	received := strings.TrimPrefix(signatureHeader, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(d.cfg.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(received), []byte(expected)) {
		return fmt.Errorf("%w: invalid signature", errors.ErrUnauthorized)
	}
	return nil
}

// Allowed reports whether the event passes the configured allow-list.
// An empty allow-list admits every event.
func (d *Dispatcher) Allowed(event string) bool {
	return len(d.cfg.AllowedEvents) == 0 || slices.Contains(d.cfg.AllowedEvents, event)
}

// ResolveTool maps an event type to its tool, falling back to the default.
func (d *Dispatcher) ResolveTool(event string) string {
	if tool, ok := d.cfg.ToolMap[event]; ok {
		return tool
	}
	return d.cfg.DefaultTool
}

// Dispatch invokes the resolved tool in a background goroutine. The HTTP
// response was already sent, so failures are logged and fully absorbed.
func (d *Dispatcher) Dispatch(event, delivery string, payload map[string]any) {
	go d.dispatch(event, delivery, payload)
}

func (d *Dispatcher) dispatch(event, delivery string, payload map[string]any) {
	if err := d.invoker.Ready(); err != nil {
		d.logger.Error("Bridge unavailable, dropping webhook", "delivery", delivery, "error", err)
		return
	}

	tool := d.ResolveTool(event)
	arguments := map[string]any{
		"event":      event,
		"delivery":   delivery,
		"action":     payload["action"],
		"repository": repositoryFullName(payload),
		"payload":    payload,
	}

	if _, err := d.invoker.InvokeTool(context.Background(), tool, arguments); err != nil {
		d.logger.Error("Failed to process webhook", "delivery", delivery, "tool", tool, "error", err)
		return
	}
	d.logger.Info("Processed webhook", "delivery", delivery, "tool", tool)
}

func repositoryFullName(payload map[string]any) any {
	repo, ok := payload["repository"].(map[string]any)
	if !ok {
		return nil
	}
	return repo["full_name"]
}
