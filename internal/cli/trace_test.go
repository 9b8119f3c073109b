package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/store"
)

func TestTrace_ListFlows(t *testing.T) {
	dbPath := seedJournal(t, "flow-1", "flow-2")

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "2 flow(s)")
	assert.Contains(t, out, "  flow-1  seq 1-8  8 dispatch(es), 2 denied\n")
	assert.Contains(t, out, "  flow-2  seq 9-16  8 dispatch(es), 2 denied\n")
}

func TestTrace_ListFlowsJSON(t *testing.T) {
	dbPath := seedJournal(t, "flow-1")

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data FlowList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []store.FlowSummary{
		{FlowToken: "flow-1", FirstSeq: 1, LastSeq: 8, Dispatches: 8, Denied: 2},
	}, resp.Data.Flows)
}

func TestTrace_Timeline(t *testing.T) {
	dbPath := seedJournal(t, "flow-1")

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath, "--flow", "flow-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Flow: flow-1")
	assert.Contains(t, out, "  [1] NORMAL_FROM_ALLOWED marker=absent outcome=ok\n")
	assert.Contains(t, out, "  [6]   TEST marker=cleared outcome=ok\n")
	assert.Contains(t, out, "  [7] MICRO_FROM_NOT_ALLOWED marker=absent outcome=denied\n")
	assert.Contains(t, out, "  [8]   TEST marker=active outcome=denied\n")
	assert.Contains(t, out, "  Dispatches: 8\n")
	assert.Contains(t, out, "  Denied:     2\n")
	assert.NotContains(t, out, "ID:")
}

func TestTrace_TimelineVerbose(t *testing.T) {
	dbPath := seedJournal(t, "flow-1")
	opts := textOpts()
	opts.Verbose = true

	out, err := execute(t, NewTraceCommand(opts), "--db", dbPath, "--flow", "flow-1", "--outcome", "denied")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: 'TEST' is a micro action.")
	assert.Contains(t, out, "ID:")
	assert.NotContains(t, out, "outcome=ok")
}

func TestTrace_Filters(t *testing.T) {
	dbPath := seedJournal(t, "flow-1")

	tests := []struct {
		name string
		args []string
		want []int64
	}{
		{"outcome", []string{"--outcome", "denied"}, []int64{7, 8}},
		{"type", []string{"--type", "TEST"}, []int64{2, 4, 6, 8}},
		{"type and outcome", []string{"--type", "TEST", "--outcome", "ok"}, []int64{2, 4, 6}},
		{"roots", []string{"--roots"}, []int64{1, 3, 5, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", dbPath, "--flow", "flow-1"}, tt.args...)
			out, err := execute(t, NewTraceCommand(jsonOpts()), args...)
			require.NoError(t, err)

			var resp struct {
				Data TraceResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))

			var seqs []int64
			for _, ev := range resp.Data.Timeline {
				seqs = append(seqs, ev.Seq)
			}
			assert.Equal(t, tt.want, seqs)
			assert.Equal(t, TraceStats{Dispatches: 8, OK: 6, Denied: 2}, resp.Data.Stats)
		})
	}
}

func TestTrace_UnknownFlow(t *testing.T) {
	dbPath := seedJournal(t, "flow-1")

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath, "--flow", "nope")
	require.NoError(t, err)
	assert.Equal(t, "No dispatches found for flow: nope\n", out)
}

func TestTrace_InvalidOutcome(t *testing.T) {
	dbPath := seedJournal(t, "flow-1")

	_, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath, "--flow", "flow-1", "--outcome", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "{}", formatArgs(nil))
	assert.Equal(t,
		"{a=[1, x], b={c=true}, n=2}",
		formatArgs(map[string]any{"n": int64(2), "b": map[string]any{"c": true}, "a": []any{int64(1), "x"}}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}
