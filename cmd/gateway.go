package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/relaygrid/mcpgate/internal/api"
	"github.com/relaygrid/mcpgate/internal/cmd"
	"github.com/relaygrid/mcpgate/internal/config"
	"github.com/relaygrid/mcpgate/internal/flags"
	"github.com/relaygrid/mcpgate/internal/gateway"
	"github.com/relaygrid/mcpgate/internal/proxy"
	"github.com/relaygrid/mcpgate/internal/registry"
	"github.com/relaygrid/mcpgate/internal/server"
)

// GatewayCmd should be used to represent the 'gateway' command.
type GatewayCmd struct {
	*cmd.BaseCmd
	Addr string
}

// NewGatewayCmd creates a newly configured (Cobra) command.
func NewGatewayCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &GatewayCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "gateway [--addr]",
		Short: "Launches the provider registry gateway",
		Long: "Launches the provider registry gateway, which polls the health and capabilities " +
			"of registered MCP providers and proxies requests to them via HTTP API",
		RunE: c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"",
		fmt.Sprintf("Address for the gateway to bind (default %q)", config.DefaultGatewayAddr),
	)

	return cobraCommand, nil
}

// run is configured (via NewGatewayCmd) to be called by the Cobra framework when the command is executed.
func (c *GatewayCmd) run(_ *cobra.Command, _ []string) error {
	logger := c.Logger()

	cfg, err := config.Load(flags.ConfigFile, flags.ConfigFile != flags.DefaultConfigFile)
	if err != nil {
		return err
	}

	addr := strings.TrimSpace(c.Addr)
	if addr == "" {
		addr = strings.TrimSpace(cfg.Gateway.Addr)
	}
	if addr == "" {
		addr = config.DefaultGatewayAddr
	}

	descriptors := registry.ParseProviderList(cfg.ProviderList(), logger)
	if len(descriptors) == 0 {
		logger.Warn("No providers configured", "env", config.EnvVarProviders)
	}

	timeout := cfg.Gateway.Timeout.Std(registry.DefaultTimeout)

	// A GitHub token, when present, authenticates both proxied calls and
	// health/capability polls against a provider registered as 'github'.
	authHeaders := map[string]map[string]string{}
	githubToken := config.GitHubToken()
	if githubToken != "" {
		authHeaders["github"] = map[string]string{
			"Authorization": "Bearer " + githubToken,
		}
	}

	reg := registry.New(
		logger,
		descriptors,
		registry.WithTimeout(timeout),
		registry.WithAuthHeaders(authHeaders),
	)

	forwarder := proxy.NewForwarder(
		logger,
		reg,
		proxy.WithTimeout(timeout),
		proxy.WithGitHubToken(githubToken),
	)

	adminToken := config.AdminToken()
	if adminToken == "" {
		logger.Warn("Admin API disabled", "env", config.EnvVarAdminToken)
	}

	srv, err := server.New(
		logger,
		addr,
		"mcpgate gateway",
		version,
		func(mux chi.Router, routerAPI huma.API) {
			api.RegisterGatewayHealthRoutes(routerAPI, reg)
			api.RegisterProviderRoutes(routerAPI, reg)
			api.RegisterAdminRoutes(routerAPI, reg, adminToken)
			api.RegisterProxyRoutes(mux, forwarder, logger)
		},
		server.WithCORSEnabled(true),
		server.WithCORSAllowOrigins(cfg.AllowOrigins()),
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	g, err := gateway.New(logger, reg, srv, cfg.Gateway.HealthInterval.Std(gateway.DefaultHealthInterval))
	if err != nil {
		return fmt.Errorf("failed to create gateway instance: %w", err)
	}

	// Create the signal handling context for the application.
	gatewayCtx, gatewayCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer gatewayCtxCancel()

	if err := g.StartAndManage(gatewayCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("gateway exited with error", "error", err)
		return err
	}

	logger.Info("Shutting down gateway")
	return nil
}
