package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
)

var (
	// Global flags
	cfgFile  string
	envFiles []string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit - resilient dispatch layer for LLM providers",
	Long: `Conduit sits between an application and its LLM providers. Every request
passes through a response cache, a per-provider circuit breaker and rate
limiter, and a priority queue for requests deferred by rate limits.

The conduit command runs the dispatch layer with its admin server, sends
one-off prompts through it and validates configuration files.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "conduit.yaml", "config file path")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
