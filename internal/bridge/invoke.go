package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/relaygrid/mcpgate/internal/errors"
)

const (
	// methodInvokePrimary is attempted first; older MCP servers expose it.
	methodInvokePrimary = "tools.invoke"

	// methodInvokeFallback is the current protocol's tool call method.
	methodInvokeFallback = "tools/call"

	// codeMethodNotFound is the JSON-RPC error code that triggers probing.
	codeMethodNotFound = -32601
)

// InvokeTool calls a named tool on the child process and returns the JSON-RPC
// result payload. Servers disagree on the invocation method name; the first
// "method not found" answer triggers a one-time probe of the alternate method,
// and the winner is cached for the bridge's lifetime.
func (b *Bridge) InvokeTool(ctx context.Context, tool string, arguments map[string]any) (any, error) {
	if err := b.Ready(); err != nil {
		return nil, err
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	if b.cfg.ValidateArguments {
		if err := b.validateArguments(ctx, tool, arguments); err != nil {
			return nil, err
		}
	}

	// Superset of the parameter shapes different server generations accept.
	params := map[string]any{
		"name":      tool,
		"tool":      tool,
		"arguments": arguments,
	}

	method := b.invokeMethod()
	result, rpcErr, err := b.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil && rpcErr.Code == codeMethodNotFound {
		alternate := methodInvokeFallback
		if method == methodInvokeFallback {
			alternate = methodInvokePrimary
		}
		result, rpcErr, err = b.call(ctx, alternate, params)
		if err != nil {
			return nil, err
		}
		if rpcErr == nil {
			b.setInvokeMethod(alternate)
		}
	}
	if rpcErr != nil {
		return nil, fmt.Errorf("%w: tool '%s': %w", errors.ErrToolCallFailed, tool, rpcErr)
	}
	return result, nil
}

// call performs one request and separates JSON-RPC level errors from transport
// errors so callers can react to specific error codes.
func (b *Bridge) call(ctx context.Context, method string, params any) (any, *rpcError, error) {
	msg, err := b.request(ctx, method, params)
	if err != nil {
		return nil, nil, err
	}
	if msg.Error != nil {
		return nil, msg.Error, nil
	}
	return decodeResult(msg), nil, nil
}

// decodeResult extracts the result member, or the whole message when a
// nonstandard server omits the result key.
func decodeResult(msg *rpcMessage) any {
	raw := msg.Result
	if len(raw) == 0 {
		raw = msg.raw
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return decoded
}

func (b *Bridge) invokeMethod() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.callMethod == "" {
		return methodInvokePrimary
	}
	return b.callMethod
}

func (b *Bridge) setInvokeMethod(method string) {
	b.mu.Lock()
	b.callMethod = method
	b.mu.Unlock()
}

// validateArguments checks tool arguments against the input schema the child
// advertises via tools/list. A tool with no known schema passes unchecked; a
// failed listing disables validation rather than blocking invocations.
func (b *Bridge) validateArguments(ctx context.Context, tool string, arguments map[string]any) error {
	schema := b.toolSchema(ctx, tool)
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(arguments))
	if err != nil {
		return fmt.Errorf("%w: validating arguments for tool '%s': %w", errors.ErrBadRequest, tool, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("%w: invalid arguments for tool '%s': %s",
			errors.ErrBadRequest, tool, strings.Join(details, "; "))
	}
	return nil
}

func (b *Bridge) toolSchema(ctx context.Context, tool string) *gojsonschema.Schema {
	b.mu.Lock()
	if b.schemasLoaded {
		schema := b.schemas[tool]
		b.mu.Unlock()
		return schema
	}
	b.mu.Unlock()

	schemas := make(map[string]*gojsonschema.Schema)
	result, rpcErr, err := b.call(ctx, "tools/list", map[string]any{})
	switch {
	case err != nil:
		b.logger.Warn("Failed to list tools for argument validation", "error", err)
	case rpcErr != nil:
		b.logger.Warn("Child refused tools/list", "error", rpcErr)
	default:
		data, err := json.Marshal(result)
		if err == nil {
			var list mcp.ListToolsResult
			if err := json.Unmarshal(data, &list); err == nil {
				for _, t := range list.Tools {
					if t.InputSchema.Type == "" {
						continue
					}
					schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.InputSchema))
					if err != nil {
						b.logger.Warn("Skipping uncompilable tool schema", "tool", t.Name, "error", err)
						continue
					}
					schemas[t.Name] = schema
				}
			}
		}
	}

	b.mu.Lock()
	b.schemas = schemas
	b.schemasLoaded = true
	schema := schemas[tool]
	b.mu.Unlock()
	return schema
}
