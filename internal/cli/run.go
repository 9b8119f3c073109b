package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/harness"
	"github.com/roach88/microact/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Catalog  string
	Flow     string
	MaxDepth int

	// FlowGenerator overrides the flow token generator (for testing).
	// If nil, defaults to dispatch.UUIDv7Generator.
	FlowGenerator dispatch.FlowTokenGenerator
}

// RunResult is the output of the run command.
type RunResult struct {
	Scenario string `json:"scenario"`
	Database string `json:"database"`
	*harness.Result
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against a persistent journal",
		Long: `Run a scenario and journal every dispatch into a SQLite database.

The database is created if it does not exist. Each run gets a fresh flow
token (UUIDv7) unless --flow is given, so repeated runs accumulate in the
same journal and can be queried with "microact trace" and checked with
"microact replay".

Exit codes:
  0 - Scenario passed
  1 - A step expectation or assertion failed
  2 - Command error (scenario or catalog invalid, database unusable)

Examples:
  microact run --db ./microact.db ./scenarios/micro_actions.yaml
  microact run --db ./microact.db --catalog ./catalog ./scenarios/add.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "action catalog directory (overrides the scenario's)")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow token (default: new UUIDv7)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", rootOpts.Config.MaxDepth, "re-entrant dispatch limit for scenarios without max_depth")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.logger()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	cat, err := compileCatalog(opts.Catalog)
	if err != nil {
		return err
	}

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	flow := opts.Flow
	if flow == "" {
		gen := opts.FlowGenerator
		if gen == nil {
			gen = dispatch.UUIDv7Generator{}
		}
		flow = gen.Generate()
	}

	runOpts := []harness.Option{
		harness.WithJournal(st),
		harness.WithFlowToken(flow),
		harness.WithLogger(logger.With("scenario", scenario.Name)),
	}
	if cat != nil {
		runOpts = append(runOpts, harness.WithCatalog(cat))
	}
	if opts.MaxDepth > 0 {
		runOpts = append(runOpts, harness.WithMaxDepth(opts.MaxDepth))
	}

	logger.Info("running scenario", "name", scenario.Name, "flow", flow)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario could not run", err)
	}

	out := RunResult{Scenario: scenario.Name, Database: opts.Database, Result: result}
	if formatter.JSON() {
		if err := outputRunJSON(formatter, out); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func outputRunJSON(formatter *OutputFormatter, out RunResult) error {
	resp := CLIResponse{Status: "ok", Data: out}
	if !out.Pass {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d check(s) failed", len(out.Errors)),
		}
	}
	return formatter.Encode(resp)
}

func outputRunText(formatter *OutputFormatter, out RunResult) {
	w := formatter.Writer

	status := "✓"
	if !out.Pass {
		status = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", status, out.Scenario)
	fmt.Fprintf(w, "  Flow:  %s\n", out.FlowToken)
	fmt.Fprintf(w, "  State: %d\n", out.State)
	fmt.Fprintf(w, "  Dispatches: %d\n", len(out.Trace))

	if formatter.Verbose {
		fmt.Fprintln(w)
		for _, ev := range out.Trace {
			fmt.Fprintf(w, "  [%d] %*s%s marker=%s outcome=%s\n", ev.Seq, 2*ev.Depth, "", ev.Type, ev.Marker, ev.Outcome)
		}
	}

	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Message)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
