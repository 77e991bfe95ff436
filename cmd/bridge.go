package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/relaygrid/mcpgate/internal/api"
	"github.com/relaygrid/mcpgate/internal/bridge"
	"github.com/relaygrid/mcpgate/internal/cmd"
	"github.com/relaygrid/mcpgate/internal/config"
	"github.com/relaygrid/mcpgate/internal/contracts"
	"github.com/relaygrid/mcpgate/internal/flags"
	"github.com/relaygrid/mcpgate/internal/server"
	"github.com/relaygrid/mcpgate/internal/webhook"
)

// BridgeCmd should be used to represent the 'bridge' command.
type BridgeCmd struct {
	*cmd.BaseCmd
	Addr    string
	Command string
}

// NewBridgeCmd creates a newly configured (Cobra) command.
func NewBridgeCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &BridgeCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "bridge [--addr] [--command]",
		Short: "Exposes a stdio MCP server over HTTP",
		Long: "Launches a configured stdio MCP server as a child process and exposes its tools " +
			"via an HTTP /invoke endpoint, plus health, discovery and webhook endpoints",
		RunE: c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"",
		fmt.Sprintf("Address for the bridge to bind (default %q)", config.DefaultBridgeAddr),
	)

	cobraCommand.Flags().StringVar(
		&c.Command,
		"command",
		"",
		"Command used to launch the stdio MCP server (overrides config file)",
	)

	return cobraCommand, nil
}

// run is configured (via NewBridgeCmd) to be called by the Cobra framework when the command is executed.
func (c *BridgeCmd) run(_ *cobra.Command, _ []string) error {
	logger := c.Logger()

	cfg, err := config.Load(flags.ConfigFile, flags.ConfigFile != flags.DefaultConfigFile)
	if err != nil {
		return err
	}

	addr := strings.TrimSpace(c.Addr)
	if addr == "" {
		addr = strings.TrimSpace(cfg.Bridge.Addr)
	}
	if addr == "" {
		addr = config.DefaultBridgeAddr
	}

	command := strings.TrimSpace(c.Command)
	if command == "" {
		command = strings.TrimSpace(cfg.Bridge.Command)
	}
	if command == "" {
		command = strings.TrimSpace(os.Getenv(config.EnvVarBridgeCommand))
	}

	name := cfg.Bridge.Name
	if name == "" {
		name = "mcpgate-bridge"
	}
	bridgeVersion := cfg.Bridge.Version
	if bridgeVersion == "" {
		bridgeVersion = version
	}

	// Create the signal handling context for the application.
	bridgeCtx, bridgeCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer bridgeCtxCancel()

	// A missing credential or command leaves the HTTP facade running in a
	// degraded state instead of failing startup, so health checks can report
	// what is wrong.
	var svc contracts.BridgeService
	var b *bridge.Bridge

	switch {
	case command == "":
		logger.Warn("No bridge command configured, serving degraded")
		svc = bridge.Unconfigured{
			Name:        name,
			Version:     bridgeVersion,
			Description: cfg.Bridge.Description,
			Reason:      "no bridge command configured",
		}
	case cfg.MissingRequiredEnv() != "":
		missing := cfg.MissingRequiredEnv()
		logger.Warn("Required environment variable not set, serving degraded", "env", missing)
		svc = bridge.Unconfigured{
			Name:        name,
			Version:     bridgeVersion,
			Description: cfg.Bridge.Description,
			Reason:      fmt.Sprintf("required environment variable '%s' is not set", missing),
		}
	default:
		b = bridge.New(logger, bridge.Config{
			Name:              name,
			Version:           bridgeVersion,
			Description:       cfg.Bridge.Description,
			Command:           command,
			Args:              cfg.Bridge.Args,
			Env:               cfg.Bridge.Env,
			Framing:           bridge.Framing(cfg.Bridge.Framing),
			InvokeTimeout:     cfg.Bridge.InvokeTimeout.Std(bridge.DefaultInvokeTimeout),
			ValidateArguments: cfg.Bridge.ValidateArguments,
		})
		if err := b.Start(bridgeCtx); err != nil {
			return fmt.Errorf("failed to start MCP server process: %w", err)
		}
		svc = b
	}

	dispatcher := webhook.NewDispatcher(logger, webhook.Config{
		Secret:        cfg.WebhookSecret(),
		DefaultTool:   cfg.WebhookDefaultTool(),
		AllowedEvents: cfg.WebhookAllowedEvents(),
		ToolMap:       cfg.WebhookToolMap(logger),
	}, svc)

	srv, err := server.New(
		logger,
		addr,
		name,
		bridgeVersion,
		func(_ chi.Router, routerAPI huma.API) {
			api.RegisterBridgeRoutes(routerAPI, svc, logger)
			api.RegisterWebhookRoutes(routerAPI, dispatcher, svc, logger)
		},
		server.WithCORSEnabled(true),
		server.WithCORSAllowOrigins(cfg.AllowOrigins()),
	)
	if err != nil {
		return fmt.Errorf("failed to create bridge server: %w", err)
	}

	serveErr := srv.Start(bridgeCtx)

	if b != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := b.Stop(stopCtx); err != nil {
			logger.Error("Error stopping MCP server process", "error", err)
		}
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logger.Error("bridge exited with error", "error", serveErr)
		return serveErr
	}

	logger.Info("Shutting down bridge")
	return nil
}
