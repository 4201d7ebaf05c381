package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providerfactory"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/telemetry/logging"
)

var validateFlags struct {
	connect bool
	format  string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate the configuration, then print the provider set with
API keys redacted.

With --connect every provider's connection is tested and the command fails
when fewer than telemetry.health.min_healthy_providers are reachable.

Examples:
  # Validate the default config file
  conduit validate

  # Validate a specific file and test provider connections
  conduit validate --config prod.yaml --connect

  # Machine-readable output
  conduit validate --format json`,
	RunE: runValidateCmd,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.connect, "connect", false, "test the connection to every provider")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, csv")
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		path = "built-in defaults"
	}

	format, err := cli.ParseOutputFormat(validateFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	return runValidate(cmd.Context(), cfg, path, validateFlags.connect, format, cmd.OutOrStdout())
}

// runValidate validates cfg and writes the provider table to out.
func runValidate(ctx context.Context, cfg *config.Config, source string, connect bool, format cli.OutputFormat, out io.Writer) error {
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(source, err.Error())
	}

	table := providerTable(cfg)

	if connect {
		status, err := checkProviders(ctx, cfg)
		if err != nil {
			return cli.NewCommandError("validate", err)
		}

		table.Headers = append(table.Headers, "reachable")
		for i, name := range cfg.ProviderNames() {
			result := status.Checks["provider:"+name]
			reachable := "yes"
			if result.Status != health.StatusOK {
				reachable = "no: " + result.Message
			}
			table.Rows[i] = append(table.Rows[i], reachable)
		}

		if err := cli.NewFormatter(format).FormatTo(out, table); err != nil {
			return err
		}
		if !status.Ready() {
			return cli.NewUnavailableError("validate",
				fmt.Errorf("%d of %d providers reachable, need %d",
					status.HealthyProviders, len(cfg.Providers), cfg.Telemetry.Health.MinHealthyProviders))
		}
		return nil
	}

	if err := cli.NewFormatter(format).FormatTo(out, table); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintf(out, "✓ Configuration valid (%s)\n", source)
	}
	return nil
}

func providerTable(cfg *config.Config) *cli.Table {
	table := &cli.Table{Headers: []string{"provider", "type", "base_url", "api_key", "rate_limit", "models"}}
	for _, name := range cfg.ProviderNames() {
		p := cfg.Providers[name]

		limit := "none"
		if l, ok := cfg.Dispatch.RateLimits[name]; ok {
			limit = fmt.Sprintf("%d/%s", l.MaxRequests, l.Window)
		}

		providerType := p.Type
		if providerType == "" {
			providerType = "auto"
		}

		table.AddRow(name, providerType, p.BaseURL, logging.RedactAPIKey(p.APIKey), limit, strings.Join(p.Models, " "))
	}
	return table
}

// checkProviders builds the providers and runs a readiness check over them.
func checkProviders(ctx context.Context, cfg *config.Config) (health.HealthStatus, error) {
	reg, err := providerfactory.NewRegistry(cfg.ProviderConfigs())
	if err != nil {
		return health.HealthStatus{}, err
	}
	defer reg.Close()

	checker := health.New(cfg.Telemetry.Health)
	checker.RegisterRegistry(reg)
	return checker.CheckReadiness(ctx), nil
}
