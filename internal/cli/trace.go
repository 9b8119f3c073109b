package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	FlowToken string // optional - list flows when empty
	Type      string // optional - filter to one action type
	Outcome   string // optional - filter to one outcome
	Roots     bool
}

// TraceEvent is a single dispatch in the timeline.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Depth   int            `json:"depth"`
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Marker  ir.Marker      `json:"marker"`
	Outcome ir.Outcome     `json:"outcome"`
	Error   string         `json:"error,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// TraceStats counts the flow's dispatches by outcome. Filters do not apply.
type TraceStats struct {
	Dispatches int `json:"dispatches"`
	OK         int `json:"ok"`
	Denied     int `json:"denied"`
	Failed     int `json:"failed"`
}

// TraceResult holds the trace of one flow.
type TraceResult struct {
	FlowToken string       `json:"flow_token"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// FlowList holds the flows of a journal.
type FlowList struct {
	Flows []store.FlowSummary `json:"flows"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query the dispatch journal",
		Long: `Query the dispatch journal.

Without --flow, lists every flow with its dispatch and denial counts.
With --flow, prints the flow's timeline: one line per dispatch in seq
order, indented by re-entrance depth, with the micro marker at entry and
the outcome (ok, denied or failed).

Examples:
  microact trace --db ./microact.db
  microact trace --db ./microact.db --flow 0192f0c1-...
  microact trace --db ./microact.db --flow 0192f0c1-... --outcome denied
  microact trace --db ./microact.db --flow 0192f0c1-... --type TEST --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only dispatches of this action type")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only dispatches with this outcome (ok|denied|failed)")
	cmd.Flags().BoolVar(&opts.Roots, "roots", false, "only root dispatches")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	switch ir.Outcome(opts.Outcome) {
	case "", ir.OutcomeOK, ir.OutcomeDenied, ir.OutcomeFailed:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid outcome %q: must be ok, denied or failed", opts.Outcome))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.FlowToken == "" {
		flows, err := st.ListFlows(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list flows", err)
		}
		if formatter.JSON() {
			return formatter.Success(FlowList{Flows: flows})
		}
		outputFlowsText(formatter.Writer, flows)
		return nil
	}

	records, err := st.ReadDispatches(ctx, store.Filter{
		FlowToken:  opts.FlowToken,
		ActionType: opts.Type,
		Outcome:    ir.Outcome(opts.Outcome),
		RootsOnly:  opts.Roots,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read flow", err)
	}

	counts, err := st.CountOutcomes(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count outcomes", err)
	}

	result := TraceResult{
		FlowToken: opts.FlowToken,
		Timeline:  buildTimeline(records),
		Stats: TraceStats{
			OK:     counts[ir.OutcomeOK],
			Denied: counts[ir.OutcomeDenied],
			Failed: counts[ir.OutcomeFailed],
		},
	}
	result.Stats.Dispatches = result.Stats.OK + result.Stats.Denied + result.Stats.Failed

	if formatter.JSON() {
		return formatter.Success(result)
	}

	if result.Stats.Dispatches == 0 {
		fmt.Fprintf(formatter.Writer, "No dispatches found for flow: %s\n", opts.FlowToken)
		return nil
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTimeline converts journal records to timeline events.
func buildTimeline(records []ir.DispatchRecord) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(records))
	for _, rec := range records {
		ev := TraceEvent{
			Seq:     rec.Seq,
			Depth:   rec.Depth,
			ID:      rec.ID,
			Type:    rec.ActionType,
			Marker:  rec.Marker,
			Outcome: rec.Outcome,
			Error:   rec.Error,
		}
		if a, err := ir.ActionFromWire(rec.Action); err == nil && len(a.Payload) > 0 {
			ev.Payload, _ = ir.ToGo(a.Payload).(map[string]any)
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

func outputFlowsText(w io.Writer, flows []store.FlowSummary) {
	if len(flows) == 0 {
		fmt.Fprintln(w, "No flows found in database.")
		return
	}
	fmt.Fprintf(w, "%d flow(s)\n\n", len(flows))
	for _, f := range flows {
		fmt.Fprintf(w, "  %s  seq %d-%d  %d dispatch(es), %d denied\n",
			f.FlowToken, f.FirstSeq, f.LastSeq, f.Dispatches, f.Denied)
	}
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Flow: %s\n", result.FlowToken)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no matching dispatches)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s%s marker=%s outcome=%s\n",
			ev.Seq, strings.Repeat("  ", ev.Depth), ev.Type, ev.Marker, ev.Outcome)
		if verbose && len(ev.Payload) > 0 {
			fmt.Fprintf(w, "       Payload: %s\n", formatArgs(ev.Payload))
		}
		if verbose && ev.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", ev.Error)
		}
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Dispatches: %d\n", result.Stats.Dispatches)
	fmt.Fprintf(w, "  OK:         %d\n", result.Stats.OK)
	fmt.Fprintf(w, "  Denied:     %d\n", result.Stats.Denied)
	fmt.Fprintf(w, "  Failed:     %d\n", result.Stats.Failed)
}

// formatArgs formats a payload with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID shortens a content hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
