package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/harness"
	"github.com/roach88/microact/internal/journal"
	"github.com/roach88/microact/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	FlowToken string // optional - specific flow only
	Catalog   string
	MaxDepth  int
}

// ReplayFlowResult holds the replay result for a single flow.
type ReplayFlowResult struct {
	journal.ReplayResult
	State         int64 `json:"state"`
	Deterministic bool  `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Flows            []ReplayFlowResult `json:"flows"`
	TotalFlows       int                `json:"total_flows"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay journaled flows and verify determinism",
		Long: `Replay journaled flows through a fresh store built from a scenario.

The root dispatches of each flow are re-dispatched in seq order, markers
included, into the scenario's middleware chain and terminal guard. Nested
dispatches are re-created by the middleware. Every root must reproduce its
recorded outcome (ok, denied or failed). The replayed store is not
journaled.

Exit codes:
  0 - All flows are deterministic
  1 - An outcome differs from the recording
  2 - Command error (database not found, unknown flow, etc.)

Examples:
  microact replay --db ./microact.db ./scenarios/micro_actions.yaml
  microact replay --db ./microact.db --flow 0192f0c1-... ./scenarios/micro_actions.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "replay specific flow only")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "action catalog directory (overrides the scenario's)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", rootOpts.Config.MaxDepth, "re-entrant dispatch limit for scenarios without max_depth")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	cat, err := compileCatalog(opts.Catalog)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var flowTokens []string
	if opts.FlowToken != "" {
		flowTokens = []string{opts.FlowToken}
	} else {
		flows, err := st.ListFlows(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list flows", err)
		}
		for _, f := range flows {
			flowTokens = append(flowTokens, f.FlowToken)
		}
	}

	result := ReplayResult{
		Flows:            make([]ReplayFlowResult, 0, len(flowTokens)),
		TotalFlows:       len(flowTokens),
		AllDeterministic: true,
	}

	if len(flowTokens) == 0 {
		if formatter.JSON() {
			return outputReplayJSON(formatter, result)
		}
		fmt.Fprintln(formatter.Writer, "No flows found in database.")
		return nil
	}

	var storeOpts []harness.Option
	if cat != nil {
		storeOpts = append(storeOpts, harness.WithCatalog(cat))
	}
	if opts.MaxDepth > 0 {
		storeOpts = append(storeOpts, harness.WithMaxDepth(opts.MaxDepth))
	}
	storeOpts = append(storeOpts, harness.WithLogger(opts.logger()))

	for _, token := range flowTokens {
		flowResult, err := replayFlow(ctx, st, scenario, token, storeOpts)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay flow %s", token), err)
		}
		result.Flows = append(result.Flows, flowResult)
		if !flowResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replayFlow replays one flow into a fresh, unjournaled store.
func replayFlow(ctx context.Context, r journal.RootReader, scenario *harness.Scenario, token string, opts []harness.Option) (ReplayFlowResult, error) {
	s, err := harness.NewStore(scenario, opts...)
	if err != nil {
		return ReplayFlowResult{}, err
	}

	res, err := journal.Replay(dispatch.WithFlow(ctx, token), r, token, s)
	if err != nil {
		return ReplayFlowResult{}, err
	}
	return ReplayFlowResult{
		ReplayResult:  res,
		State:         s.GetState(),
		Deterministic: res.Deterministic(),
	}, nil
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := formatter.Encode(response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d flow(s)\n", result.TotalFlows)
	fmt.Fprintln(w)

	for _, flow := range result.Flows {
		status := "✓"
		if !flow.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Flow: %s\n", status, flow.FlowToken)
		fmt.Fprintf(w, "  Roots replayed: %d, final state: %d\n", flow.Replayed, flow.State)

		for _, m := range flow.Mismatches {
			fmt.Fprintf(w, "  [%d] %s: recorded %s, replayed %s\n", m.Seq, m.ActionType, m.Recorded, m.Replayed)
			if formatter.Verbose && m.Error != "" {
				fmt.Fprintf(w, "       Error: %s\n", m.Error)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All flows verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
