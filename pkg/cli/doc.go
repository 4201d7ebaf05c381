/*
Package cli provides command-line helpers for the conduit command.

Output Formatting:

Commands print results as text, JSON or CSV. Tabular results use Table so
that every format can render them:

	table := &cli.Table{Headers: []string{"provider", "state"}}
	table.AddRow("openai", "closed")
	if err := cli.NewFormatter(cli.FormatCSV).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

Repeated requests report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(n)
	for i := 0; i < n; i++ {
		progress.Increment(err != nil)
	}
	progress.Finish()

Errors and Exit Codes:

ConfigError exits with ExitConfig, NewUnavailableError with
ExitUnavailable and anything else with ExitError. ExitCodeFor resolves the
code for a returned error.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
