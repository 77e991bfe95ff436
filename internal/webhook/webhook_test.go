package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/mcpgate/internal/bridge"
	"github.com/relaygrid/mcpgate/internal/errors"
)

type invocation struct {
	tool      string
	arguments map[string]any
}

// capturingInvoker records tool invocations for assertions.
type capturingInvoker struct {
	ready error
	calls chan invocation
}

func newCapturingInvoker(ready error) *capturingInvoker {
	return &capturingInvoker{ready: ready, calls: make(chan invocation, 8)}
}

func (c *capturingInvoker) Ready() error    { return c.ready }
func (c *capturingInvoker) IsRunning() bool { return c.ready == nil }

func (c *capturingInvoker) InvokeTool(_ context.Context, tool string, arguments map[string]any) (any, error) {
	c.calls <- invocation{tool: tool, arguments: arguments}
	return map[string]any{}, nil
}

func (c *capturingInvoker) Manifest() bridge.Manifest { return bridge.Manifest{} }

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"
	body := []byte(`{"action":"opened"}`)

	tests := []struct {
		name      string
		secret    string
		signature string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			signature: sign(secret, body),
			wantErr:   false,
		},
		{
			name:      "missing signature header",
			secret:    secret,
			signature: "",
			wantErr:   true,
		},
		{
			name:      "missing prefix",
			secret:    secret,
			signature: "deadbeef",
			wantErr:   true,
		},
		{
			name:      "wrong secret",
			secret:    secret,
			signature: sign("other", body),
			wantErr:   true,
		},
		{
			name:      "tampered digest",
			secret:    secret,
			signature: sign(secret, body)[:len(sign(secret, body))-2] + "00",
			wantErr:   true,
		},
		{
			name:      "no secret configured",
			secret:    "",
			signature: sign(secret, body),
			wantErr:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := NewDispatcher(hclog.NewNullLogger(), Config{Secret: tc.secret}, newCapturingInvoker(nil))

			err := d.VerifySignature(body, tc.signature)
			if tc.wantErr {
				require.ErrorIs(t, err, errors.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		allowedEvents []string
		event         string
		want          bool
	}{
		{name: "empty allow-list admits everything", allowedEvents: nil, event: "push", want: true},
		{name: "listed event admitted", allowedEvents: []string{"push", "issues"}, event: "push", want: true},
		{name: "unlisted event ignored", allowedEvents: []string{"push"}, event: "deployment", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := NewDispatcher(hclog.NewNullLogger(), Config{
				Secret:        "s",
				AllowedEvents: tc.allowedEvents,
			}, newCapturingInvoker(nil))

			require.Equal(t, tc.want, d.Allowed(tc.event))
		})
	}
}

func TestResolveTool(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(hclog.NewNullLogger(), Config{
		Secret:      "s",
		DefaultTool: "record_event",
		ToolMap:     map[string]string{"issues": "track_issue"},
	}, newCapturingInvoker(nil))

	require.Equal(t, "track_issue", d.ResolveTool("issues"))
	require.Equal(t, "record_event", d.ResolveTool("push"))
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("invokes mapped tool with event context", func(t *testing.T) {
		t.Parallel()

		invoker := newCapturingInvoker(nil)
		d := NewDispatcher(hclog.NewNullLogger(), Config{
			Secret:      "s",
			DefaultTool: "record_event",
		}, invoker)

		payload := map[string]any{
			"action":     "opened",
			"repository": map[string]any{"full_name": "acme/widgets"},
			"number":     float64(7),
		}
		d.Dispatch("issues", "delivery-1", payload)

		select {
		case call := <-invoker.calls:
			require.Equal(t, "record_event", call.tool)
			require.Equal(t, "issues", call.arguments["event"])
			require.Equal(t, "delivery-1", call.arguments["delivery"])
			require.Equal(t, "opened", call.arguments["action"])
			require.Equal(t, "acme/widgets", call.arguments["repository"])
			require.Equal(t, payload, call.arguments["payload"])
		case <-time.After(5 * time.Second):
			t.Fatal("webhook was never dispatched")
		}
	})

	t.Run("missing repository yields nil", func(t *testing.T) {
		t.Parallel()

		invoker := newCapturingInvoker(nil)
		d := NewDispatcher(hclog.NewNullLogger(), Config{Secret: "s", DefaultTool: "t"}, invoker)

		d.Dispatch("ping", "delivery-2", map[string]any{})

		select {
		case call := <-invoker.calls:
			require.Nil(t, call.arguments["repository"])
			require.Nil(t, call.arguments["action"])
		case <-time.After(5 * time.Second):
			t.Fatal("webhook was never dispatched")
		}
	})

	t.Run("unready bridge drops the event silently", func(t *testing.T) {
		t.Parallel()

		invoker := newCapturingInvoker(fmt.Errorf("%w: down", errors.ErrBridgeNotRunning))
		d := NewDispatcher(hclog.NewNullLogger(), Config{Secret: "s", DefaultTool: "t"}, invoker)

		d.Dispatch("push", "delivery-3", map[string]any{})

		select {
		case <-invoker.calls:
			t.Fatal("tool must not be invoked when the bridge is not ready")
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	require.True(t, NewDispatcher(hclog.NewNullLogger(), Config{Secret: "s"}, newCapturingInvoker(nil)).Configured())
	require.False(t, NewDispatcher(hclog.NewNullLogger(), Config{}, newCapturingInvoker(nil)).Configured())
}
