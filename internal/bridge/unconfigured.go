package bridge

import (
	"context"
	"fmt"

	"github.com/relaygrid/mcpgate/internal/errors"
)

// Unconfigured stands in for a bridge whose required credential or command is
// missing. The HTTP facade stays up and reports a permanently degraded health
// status; every invocation fails with a clear "not configured" error instead of
// attempting and failing each call.
type Unconfigured struct {
	Name        string
	Version     string
	Description string
	Reason      string
}

func (u Unconfigured) Ready() error {
	return fmt.Errorf("%w: %s", errors.ErrNotConfigured, u.Reason)
}

func (u Unconfigured) IsRunning() bool {
	return false
}

func (u Unconfigured) InvokeTool(context.Context, string, map[string]any) (any, error) {
	return nil, u.Ready()
}

func (u Unconfigured) Manifest() Manifest {
	return Manifest{
		Name:         u.Name,
		Version:      u.Version,
		Description:  u.Description,
		Capabilities: map[string]any{},
	}
}
