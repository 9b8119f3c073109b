package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/config"
	"github.com/roach88/microact/internal/harness"
	"github.com/roach88/microact/internal/store"
)

var (
	microActionsScenario = filepath.Join("..", "harness", "testdata", "scenarios", "micro_actions.yaml")
	scenariosDir         = filepath.Join("..", "harness", "testdata", "scenarios")
	catalogDir           = filepath.Join("..", "compiler", "testdata", "catalog")
	brokenCatalogDir     = filepath.Join("..", "compiler", "testdata", "broken")
)

func testConfig() config.Config {
	return config.Config{DB: "microact.db", Format: "text", MaxDepth: 64}
}

func textOpts() *RootOptions {
	return &RootOptions{Format: "text", Config: testConfig()}
}

func jsonOpts() *RootOptions {
	return &RootOptions{Format: "json", Config: testConfig()}
}

// execute runs cmd with args and returns everything written to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// seedJournal runs the micro actions scenario into a new database under the
// given flow tokens and returns the database path.
func seedJournal(t *testing.T, flows ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	scenario, err := harness.LoadScenario(microActionsScenario)
	require.NoError(t, err)

	for _, flow := range flows {
		result, err := harness.Run(scenario, harness.WithJournal(st), harness.WithFlowToken(flow))
		require.NoError(t, err)
		require.True(t, result.Pass, "errors: %v", result.Errors)
	}
	return dbPath
}
