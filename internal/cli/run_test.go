package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/store"
)

func TestRunScenario(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")

	out, err := execute(t, NewRunCommand(textOpts()), "--db", dbPath, "--flow", "flow-1", microActionsScenario)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ micro_actions")
	assert.Contains(t, out, "Flow:  flow-1")
	assert.Contains(t, out, "State: 7")
	assert.Contains(t, out, "Dispatches: 8")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	records, err := st.ReadFlow(context.Background(), "flow-1")
	require.NoError(t, err)
	assert.Len(t, records, 8)
}

func TestRunScenario_Verbose(t *testing.T) {
	opts := textOpts()
	opts.Verbose = true
	dbPath := filepath.Join(t.TempDir(), "run.db")

	out, err := execute(t, NewRunCommand(opts), "--db", dbPath, "--flow", "flow-1", microActionsScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "  [6]   TEST marker=cleared outcome=ok")
	assert.Contains(t, out, "  [8]   TEST marker=active outcome=denied")
}

func TestRunScenario_GeneratedFlowsAccumulate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	opts := &RunOptions{
		RootOptions:   textOpts(),
		Database:      dbPath,
		FlowGenerator: dispatch.NewFixedGenerator("first", "second"),
	}

	for range 2 {
		cmd := &cobra.Command{}
		cmd.SetOut(&bytes.Buffer{})
		require.NoError(t, runScenario(opts, microActionsScenario, cmd))
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	flows, err := st.ListFlows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, store.FlowSummary{FlowToken: "first", FirstSeq: 1, LastSeq: 8, Dispatches: 8, Denied: 2}, flows[0])
	assert.Equal(t, store.FlowSummary{FlowToken: "second", FirstSeq: 9, LastSeq: 16, Dispatches: 8, Denied: 2}, flows[1])
}

func TestRunScenario_JSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")

	out, err := execute(t, NewRunCommand(jsonOpts()), "--db", dbPath, "--flow", "flow-1", microActionsScenario)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scenario  string `json:"scenario"`
			FlowToken string `json:"flow_token"`
			Pass      bool   `json:"pass"`
			State     int64  `json:"state"`
			Trace     []any  `json:"trace"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "micro_actions", resp.Data.Scenario)
	assert.Equal(t, "flow-1", resp.Data.FlowToken)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, int64(7), resp.Data.State)
	assert.Len(t, resp.Data.Trace, 8)
}

func TestRunScenario_Failure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "failing.yaml", `
name: failing
description: "wrong expectation"
steps:
  - dispatch: A
    expect: { state: 99 }
`)

	out, err := execute(t, NewRunCommand(textOpts()), "--db", filepath.Join(dir, "run.db"), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "expected state 99, got 2")
}

func TestRunScenario_CommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing scenario", []string{"--db", filepath.Join(dir, "a.db"), filepath.Join(dir, "missing.yaml")}, "failed to load scenario"},
		{"missing catalog", []string{"--db", filepath.Join(dir, "b.db"), "--catalog", filepath.Join(dir, "nope"), microActionsScenario}, "failed to load catalog"},
		{"catalog with errors", []string{"--db", filepath.Join(dir, "c.db"), "--catalog", brokenCatalogDir, microActionsScenario}, "invalid catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewRunCommand(textOpts()), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunScenario_CatalogRejectsUndeclared(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "catalog/actions.cue", addCatalog)

	_, err := execute(t, NewRunCommand(textOpts()),
		"--db", filepath.Join(dir, "run.db"),
		"--catalog", filepath.Join(dir, "catalog"),
		microActionsScenario)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario could not run")
}
