package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/microact/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Catalog     string
	Update      bool   // regenerate golden files
	Filter      string // scenario filter (glob pattern)
	Concurrency int
	MaxDepth    int
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files and compare golden traces",
		Long: `Run every scenario file under a directory.

Each scenario runs in its own in-memory journal with a deterministic clock.
Step expectations and assertions are checked, and when
golden/<name>.golden exists next to the scenario the trace must match it
byte for byte. Scenarios run concurrently.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  microact test ./scenarios
  microact test ./scenarios --filter "micro_*"
  microact test ./scenarios --update
  microact test ./scenarios --catalog ./catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "action catalog directory (overrides each scenario's)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", rootOpts.Config.Concurrency, "parallel scenarios (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", rootOpts.Config.MaxDepth, "re-entrant dispatch limit for scenarios without max_depth")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	cat, err := compileCatalog(opts.Catalog)
	if err != nil {
		return err
	}

	paths, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if len(paths) == 0 {
		if formatter.JSON() {
			return outputTestJSON(formatter, &harness.SuiteResult{Scenarios: []harness.ScenarioOutcome{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	result, err := harness.RunSuite(commandContext(cmd), paths, harness.SuiteOptions{
		Catalog:     cat,
		Update:      opts.Update,
		Concurrency: opts.Concurrency,
		MaxDepth:    opts.MaxDepth,
		Logger:      opts.logger(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "test run aborted", err)
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

func outputTestJSON(formatter *OutputFormatter, result *harness.SuiteResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(formatter *OutputFormatter, result *harness.SuiteResult) error {
	w := formatter.Writer

	for _, o := range result.Scenarios {
		switch {
		case !o.Pass:
			fmt.Fprintf(w, "✗ %s\n", o.Name)
			for _, e := range o.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		case o.Golden == harness.GoldenUpdated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", o.Name)
		default:
			fmt.Fprintf(w, "✓ %s\n", o.Name)
		}
		if formatter.Verbose {
			for _, warn := range o.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warn.Message)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
