package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relaygrid/mcpgate/internal/cmd"
	"github.com/relaygrid/mcpgate/internal/registry"
)

// ProvidersCmd should be used to represent the 'providers' command.
type ProvidersCmd struct {
	*cmd.BaseCmd
	Endpoint string
	Refresh  bool
	Format   cmd.OutputFormat
}

// NewProvidersCmd creates a newly configured (Cobra) command.
func NewProvidersCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &ProvidersCmd{
		BaseCmd: baseCmd,
		Format:  cmd.FormatText,
	}

	cobraCommand := &cobra.Command{
		Use:   "providers [--endpoint] [--refresh] [--format]",
		Short: "Lists the providers registered with a running gateway",
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Endpoint,
		"endpoint",
		"http://localhost:8010",
		"Base URL of the running gateway",
	)

	cobraCommand.Flags().BoolVar(
		&c.Refresh,
		"refresh",
		false,
		"Refresh provider capabilities before listing",
	)

	cobraCommand.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Output format, one of: %v", cmd.AllowedOutputFormats().String()),
	)

	return cobraCommand, nil
}

// run is configured (via NewProvidersCmd) to be called by the Cobra framework when the command is executed.
func (c *ProvidersCmd) run(cobraCmd *cobra.Command, _ []string) error {
	providers, err := c.fetch()
	if err != nil {
		return err
	}

	return c.print(cobraCmd, providers)
}

func (c *ProvidersCmd) fetch() ([]registry.ProviderInfo, error) {
	target, err := url.JoinPath(c.Endpoint, "providers")
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint '%s': %w", c.Endpoint, err)
	}
	if c.Refresh {
		target += "?refresh=true"
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(target)
	if err != nil {
		return nil, fmt.Errorf("failed to contact gateway at '%s': %w", c.Endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	var providers []registry.ProviderInfo
	if err := json.NewDecoder(resp.Body).Decode(&providers); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return providers, nil
}

func (c *ProvidersCmd) print(cobraCmd *cobra.Command, providers []registry.ProviderInfo) error {
	out := cobraCmd.OutOrStdout()

	switch c.Format {
	case cmd.FormatJSON:
		data, err := json.MarshalIndent(providers, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case cmd.FormatYAML:
		data, err := yaml.Marshal(providers)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	default:
		if len(providers) == 0 {
			fmt.Fprintln(out, "No providers registered.")
			return nil
		}
		for _, p := range providers {
			status := "unknown"
			if p.Health != nil {
				status = string(p.Health.Status)
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.Name, p.BaseURL, status)
			for _, tool := range p.DefaultTools {
				fmt.Fprintf(out, "  - %s\n", tool)
			}
		}
	}

	return nil
}
