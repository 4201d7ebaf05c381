package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/dispatch"
	"mercator-hq/conduit/pkg/providers"
)

type askOptions struct {
	provider    string
	model       string
	system      string
	temperature float64
	maxTokens   int
	priority    int
	noCache     bool
	repeat      int
	format      string
	stats       bool

	// defaultProvider picks the model when neither provider nor model is set.
	defaultProvider string
}

var askFlags askOptions

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a prompt through the dispatch layer",
	Long: `Send a single prompt through the cache, circuit breaker, rate limiter and
queue and stream the answer to stdout.

With --repeat the prompt is sent several times in a row and a table of the
outcomes is printed instead of the answer. Repeats after the first are
normally served from the cache, which makes --repeat a quick way to check
cache and rate limit settings.

Examples:
  # Ask the default provider
  conduit ask "What is a circuit breaker?"

  # Pick a provider and model
  conduit ask --model openai:gpt-4o-mini "Hello"

  # Send the prompt five times and print the outcomes as CSV
  conduit ask --repeat 5 --format csv "Hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAskCmd,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askFlags.provider, "provider", "p", "", "provider id (default: the configured default provider)")
	askCmd.Flags().StringVarP(&askFlags.model, "model", "m", "", "model id, plain or provider:model")
	askCmd.Flags().StringVar(&askFlags.system, "system", "", "system message")
	askCmd.Flags().Float64Var(&askFlags.temperature, "temperature", 0, "sampling temperature")
	askCmd.Flags().IntVar(&askFlags.maxTokens, "max-tokens", 0, "completion token limit (0: provider default)")
	askCmd.Flags().IntVar(&askFlags.priority, "priority", 0, "queue priority when rate limited")
	askCmd.Flags().BoolVar(&askFlags.noCache, "no-cache", false, "bypass the response cache")
	askCmd.Flags().IntVarP(&askFlags.repeat, "repeat", "n", 1, "number of times to send the prompt")
	askCmd.Flags().StringVar(&askFlags.format, "format", "text", "output format for --repeat and --stats: text, json, csv")
	askCmd.Flags().BoolVar(&askFlags.stats, "stats", false, "print dispatch statistics afterwards")
}

func runAskCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewCommandError("ask", err)
	}
	defer a.close(context.Background())
	a.start(ctx)

	opts := askFlags
	opts.defaultProvider = cfg.Dispatch.DefaultProvider
	return runAsk(ctx, a.dispatcher, opts, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// runAsk sends prompt opts.repeat times and writes the result to out.
func runAsk(ctx context.Context, d *dispatch.Dispatcher, opts askOptions, prompt string, out, errOut io.Writer) error {
	format, err := cli.ParseOutputFormat(opts.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}
	if opts.repeat < 1 {
		return cli.NewConfigError("repeat", "must be at least 1")
	}
	if opts.model == "" {
		model, err := defaultModel(ctx, d.Registry(), opts)
		if err != nil {
			return askError(err)
		}
		opts.model = model
	}

	if opts.repeat == 1 {
		if err := askOnce(ctx, d, opts, prompt, out); err != nil {
			return askError(err)
		}
	} else {
		table, err := askRepeated(ctx, d, opts, prompt, errOut)
		if err != nil {
			return askError(err)
		}
		if err := cli.NewFormatter(format).FormatTo(out, table); err != nil {
			return cli.NewCommandError("ask", err)
		}
	}

	if opts.stats {
		return cli.NewFormatter(format).FormatTo(out, statsTable(d))
	}
	return nil
}

func newRequest(opts askOptions, prompt string) *dispatch.Request {
	var msgs []providers.Message
	if opts.system != "" {
		msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: opts.system})
	}
	msgs = append(msgs, providers.Message{Role: providers.RoleUser, Content: prompt})

	return &dispatch.Request{
		Provider:    opts.provider,
		Model:       opts.model,
		Messages:    msgs,
		Temperature: opts.temperature,
		MaxTokens:   opts.maxTokens,
		Priority:    opts.priority,
		NoCache:     opts.noCache,
	}
}

// defaultModel returns the first model served by the requested provider.
func defaultModel(ctx context.Context, reg *providers.Registry, opts askOptions) (string, error) {
	name := opts.provider
	if name == "" {
		name = opts.defaultProvider
	}
	if name == "" {
		return "", fmt.Errorf("%w: pass --provider or --model", providers.ErrProviderNotFound)
	}

	p, err := reg.Get(name)
	if err != nil {
		return "", err
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list models of %s: %w", name, err)
	}
	if len(models) == 0 {
		return "", fmt.Errorf("provider %s lists no models; pass --model", name)
	}
	return models[0], nil
}

// askOnce streams one answer to out.
func askOnce(ctx context.Context, d *dispatch.Dispatcher, opts askOptions, prompt string, out io.Writer) error {
	req := newRequest(opts, prompt)
	var streamed atomic.Bool
	req.OnDelta = func(delta string) {
		streamed.Store(true)
		fmt.Fprint(out, delta)
	}

	resp, err := d.Complete(ctx, req)
	if err != nil {
		return err
	}
	if !streamed.Load() {
		fmt.Fprint(out, resp.Content)
	}
	fmt.Fprintln(out)
	return nil
}

// askRepeated sends the prompt opts.repeat times, reporting progress on
// errOut, and returns one row per attempt.
func askRepeated(ctx context.Context, d *dispatch.Dispatcher, opts askOptions, prompt string, errOut io.Writer) (*cli.Table, error) {
	table := &cli.Table{Headers: []string{"attempt", "request_id", "provider", "status", "duration_ms", "error"}}

	progress := cli.NewProgressReporter(errOut)
	progress.Start(int64(opts.repeat))
	defer progress.Finish()

	failures := 0
	for i := 1; i <= opts.repeat; i++ {
		if err := ctx.Err(); err != nil {
			return table, err
		}

		resp, err := d.Complete(ctx, newRequest(opts, prompt))
		progress.Increment(err != nil)
		if err != nil {
			failures++
			table.AddRow(i, "", "", "failed", 0, err.Error())
			continue
		}
		table.AddRow(i, resp.RequestID, resp.Provider, resp.Status, resp.DurationMs(), "")
	}

	if failures == opts.repeat {
		return table, fmt.Errorf("all %d attempts failed", failures)
	}
	return table, nil
}

// statsTable summarizes the dispatcher state per provider.
func statsTable(d *dispatch.Dispatcher) *cli.Table {
	m := d.Metrics().Metrics()
	c := d.Cache().Stats()
	table := &cli.Table{Headers: []string{"metric", "value"}}
	table.AddRow("total_requests", m.TotalRequests)
	table.AddRow("successful_requests", m.SuccessfulRequests)
	table.AddRow("failed_requests", m.FailedRequests)
	table.AddRow("cache_hits", c.Hits)
	table.AddRow("cache_misses", c.Misses)
	table.AddRow("cache_size", c.Size)
	circuits := d.Breaker().AllStats()
	for _, name := range slices.Sorted(maps.Keys(circuits)) {
		table.AddRow("circuit."+name, circuits[name].State)
	}
	return table
}

// askError maps dispatch errors to CLI errors with a matching exit code.
func askError(err error) error {
	var open *dispatch.CircuitOpenError
	if errors.As(err, &open) || errors.Is(err, providers.ErrProviderNotFound) {
		return cli.NewUnavailableError("ask", err)
	}
	return cli.NewCommandError("ask", err)
}
