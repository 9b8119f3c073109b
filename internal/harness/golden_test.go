package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/ir"
)

// TestScenarioFiles runs the scenario files under testdata/scenarios. Those
// with a golden file are compared against it.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -run TestScenarioFiles -update
func TestScenarioFiles(t *testing.T) {
	tests := []struct {
		file   string
		golden bool
		state  int64
	}{
		{file: "micro_actions.yaml", golden: true, state: 7},
		{file: "catalog_add.yaml", golden: true, state: 6},
		{file: "depth_limit.yaml", state: 1},
		{file: "escaped_micro.yaml", state: 4},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.file))
			require.NoError(t, err)

			var result *Result
			if tt.golden {
				result, err = RunWithGolden(t, scenario)
			} else {
				result, err = Run(scenario)
			}
			require.NoError(t, err)

			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.state, result.State)
		})
	}
}

func TestAssertGolden(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "micro_actions.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "micro_actions", result))
}

func TestTraceSnapshot_MarshalGolden(t *testing.T) {
	snapshot := &TraceSnapshot{
		ScenarioName: "s",
		FlowToken:    "f",
		Trace: []TraceEvent{
			{Seq: 1, Depth: 0, Type: "A", Marker: ir.MarkerAbsent, Outcome: ir.OutcomeOK},
			{Seq: 2, Depth: 1, Type: "B", Marker: ir.MarkerActive, Outcome: ir.OutcomeDenied, Error: "'B' is a micro action."},
		},
	}

	data, err := snapshot.MarshalGolden()
	require.NoError(t, err)
	assert.Equal(t,
		`{"flow_token":"f","scenario_name":"s","trace":[`+
			`{"depth":0,"marker":"absent","outcome":"ok","seq":1,"type":"A"},`+
			`{"depth":1,"error":"'B' is a micro action.","marker":"active","outcome":"denied","seq":2,"type":"B"}]}`,
		string(data))
}

func TestTraceSnapshot_EmptyTrace(t *testing.T) {
	snapshot := &TraceSnapshot{ScenarioName: "empty", Trace: []TraceEvent{}}

	data, err := snapshot.MarshalGolden()
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"empty","trace":[]}`, string(data))
}
